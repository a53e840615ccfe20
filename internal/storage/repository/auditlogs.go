package repository

import (
	"context"
	"fmt"

	"github.com/a8n-tools/platform/internal/models"
)

const auditColumns = `id, actor_id, actor_email, actor_role, actor_ip, action,
			      resource_type, resource_id, old_values, new_values, metadata,
			      is_admin_action, severity, created_at`

func scanAuditLog(row interface{ Scan(...any) error }) (*models.AuditLog, error) {
	l := &models.AuditLog{}
	var action, severity string
	if err := row.Scan(&l.ID, &l.ActorID, &l.ActorEmail, &l.ActorRole, &l.ActorIP,
		&action, &l.ResourceType, &l.ResourceID, &l.OldValues, &l.NewValues,
		&l.Metadata, &l.IsAdminAction, &severity, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Action = models.AuditAction(action)
	l.Severity = models.AuditSeverity(severity)
	return l, nil
}

// CreateAuditLog записывает событие в журнал аудита.
func (s *Storage) CreateAuditLog(ctx context.Context, entry models.CreateAuditLog) (string, error) {
	const op = "storage.CreateAuditLog"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO audit_logs (actor_id, actor_email, actor_role, actor_ip, action,
			      resource_type, resource_id, old_values, new_values, metadata,
			      is_admin_action, severity)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			  RETURNING id`
	var id string
	if err := s.DB.QueryRowContext(ctx, query,
		entry.ActorID, entry.ActorEmail, entry.ActorRole, entry.ActorIP, entry.Action,
		entry.ResourceType, entry.ResourceID, entry.OldValues, entry.NewValues,
		entry.Metadata, entry.Action.IsAdminAction(), entry.Severity).Scan(&id); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// ListAuditLogs возвращает страницу журнала аудита под фильтром.
func (s *Storage) ListAuditLogs(ctx context.Context, filter models.AuditLogFilter, limit, offset int) ([]*models.AuditLog, error) {
	const op = "storage.ListAuditLogs"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + auditColumns + `
			  FROM audit_logs
			  WHERE ($1::text IS NULL OR actor_id = $1::uuid)
			    AND ($2::text IS NULL OR action = $2)
			    AND (NOT $3 OR is_admin_action)
			  ORDER BY created_at DESC
			  LIMIT $4 OFFSET $5`
	rows, err := s.DB.QueryContext(ctx, query,
		filter.ActorID, actionArg(filter.Action), filter.AdminOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.AuditLog
	for rows.Next() {
		l, err := scanAuditLog(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountAuditLogs возвращает число записей журнала под фильтром.
func (s *Storage) CountAuditLogs(ctx context.Context, filter models.AuditLogFilter) (int, error) {
	const op = "storage.CountAuditLogs"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*)
			  FROM audit_logs
			  WHERE ($1::text IS NULL OR actor_id = $1::uuid)
			    AND ($2::text IS NULL OR action = $2)
			    AND (NOT $3 OR is_admin_action)`
	var total int
	if err := s.DB.QueryRowContext(ctx, query,
		filter.ActorID, actionArg(filter.Action), filter.AdminOnly).Scan(&total); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, nil
}

func actionArg(action *models.AuditAction) any {
	if action == nil {
		return nil
	}
	return string(*action)
}
