package repository

import (
	"context"
	"fmt"

	"github.com/a8n-tools/platform/internal/models"
)

const notificationColumns = `id, type, title, message, metadata, user_id, is_read, created_at`

func scanNotification(row interface{ Scan(...any) error }) (*models.AdminNotification, error) {
	n := &models.AdminNotification{}
	var typ string
	if err := row.Scan(&n.ID, &typ, &n.Title, &n.Message, &n.Metadata,
		&n.UserID, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Type = models.NotificationType(typ)
	return n, nil
}

// CreateNotification создает уведомление для администраторов.
func (s *Storage) CreateNotification(ctx context.Context, n models.CreateAdminNotification) (string, error) {
	const op = "storage.CreateNotification"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO admin_notifications (type, title, message, metadata, user_id)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	var id string
	if err := s.DB.QueryRowContext(ctx, query,
		n.Type, n.Title, n.Message, n.Metadata, n.UserID).Scan(&id); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// ListNotifications возвращает страницу уведомлений, опционально только
// непрочитанные.
func (s *Storage) ListNotifications(ctx context.Context, unreadOnly bool, limit, offset int) ([]*models.AdminNotification, error) {
	const op = "storage.ListNotifications"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + notificationColumns + `
			  FROM admin_notifications
			  WHERE (NOT $1 OR NOT is_read)
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, unreadOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.AdminNotification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountNotifications возвращает число уведомлений, опционально только
// непрочитанных.
func (s *Storage) CountNotifications(ctx context.Context, unreadOnly bool) (int, error) {
	const op = "storage.CountNotifications"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*) FROM admin_notifications WHERE (NOT $1 OR NOT is_read)`
	var total int
	if err := s.DB.QueryRowContext(ctx, query, unreadOnly).Scan(&total); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, nil
}

// MarkNotificationRead помечает уведомление прочитанным и возвращает
// количество изменённых строк.
func (s *Storage) MarkNotificationRead(ctx context.Context, id string) (int, error) {
	const op = "storage.MarkNotificationRead"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE admin_notifications SET is_read = TRUE WHERE id = $1`
	result, err := s.DB.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// MarkAllNotificationsRead помечает все уведомления прочитанными.
func (s *Storage) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	const op = "storage.MarkAllNotificationsRead"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, `UPDATE admin_notifications SET is_read = TRUE WHERE NOT is_read`)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
