package repository

import (
	"context"
	"fmt"

	"github.com/a8n-tools/platform/internal/models"
)

const applicationColumns = `id, name, slug, display_name, description, icon_url,
			      is_active, maintenance_mode, maintenance_message, container_name,
			      health_check_url, version, source_code_url, created_at, updated_at`

func scanApplication(row interface{ Scan(...any) error }) (*models.Application, error) {
	a := &models.Application{}
	if err := row.Scan(&a.ID, &a.Name, &a.Slug, &a.DisplayName, &a.Description,
		&a.IconURL, &a.IsActive, &a.MaintenanceMode, &a.MaintenanceMessage,
		&a.ContainerName, &a.HealthCheckURL, &a.Version, &a.SourceCodeURL,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

// ListApplications возвращает весь каталог приложений. Неактивные
// приложения включаются: решение о видимости принимает вызывающая сторона.
func (s *Storage) ListApplications(ctx context.Context) ([]*models.Application, error) {
	const op = "storage.ListApplications"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + applicationColumns + `
			  FROM applications
			  ORDER BY display_name`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetApplicationBySlug возвращает приложение по его slug.
func (s *Storage) GetApplicationBySlug(ctx context.Context, slug string) (*models.Application, error) {
	const op = "storage.GetApplicationBySlug"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + applicationColumns + `
			  FROM applications
			  WHERE slug = $1`
	a, err := scanApplication(s.DB.QueryRowContext(ctx, query, slug))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// UpdateApplication применяет частичное обновление из админки и возвращает
// количество изменённых строк. nil-поля не трогаются.
func (s *Storage) UpdateApplication(ctx context.Context, slug string, upd models.UpdateApplication) (int, error) {
	const op = "storage.UpdateApplication"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE applications
			  SET is_active = COALESCE($1, is_active),
			      maintenance_mode = COALESCE($2, maintenance_mode),
			      maintenance_message = COALESCE($3, maintenance_message),
			      version = COALESCE($4, version),
			      updated_at = now()
			  WHERE slug = $5`
	result, err := s.DB.ExecContext(ctx, query,
		upd.IsActive, upd.MaintenanceMode, upd.MaintenanceMessage, upd.Version, slug)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// CountApplications возвращает общее число приложений в каталоге.
func (s *Storage) CountApplications(ctx context.Context) (int, error) {
	const op = "storage.CountApplications"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var total int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications`).Scan(&total); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, nil
}
