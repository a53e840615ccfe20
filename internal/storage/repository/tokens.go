package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/a8n-tools/platform/internal/models"
)

// CreateRefreshToken сохраняет новую сессию и возвращает её ID.
func (s *Storage) CreateRefreshToken(ctx context.Context, t models.CreateRefreshToken) (string, error) {
	const op = "storage.CreateRefreshToken"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO refresh_tokens (user_id, token_hash, device_info, ip_address, expires_at)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	var id string
	if err := s.DB.QueryRowContext(ctx, query,
		t.UserID, t.TokenHash, t.DeviceInfo, t.IPAddress, t.ExpiresAt).Scan(&id); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// GetRefreshTokenByHash возвращает живую сессию по хэшу токена.
// Отозванные и истекшие сессии не возвращаются.
func (s *Storage) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	const op = "storage.GetRefreshTokenByHash"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, token_hash, device_info, ip_address, expires_at,
			      revoked_at, created_at, last_used_at
			  FROM refresh_tokens
			  WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > now()`
	t := &models.RefreshToken{}
	row := s.DB.QueryRowContext(ctx, query, tokenHash)
	if err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.DeviceInfo, &t.IPAddress,
		&t.ExpiresAt, &t.RevokedAt, &t.CreatedAt, &t.LastUsedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// RotateRefreshToken заменяет хэш живой сессии на новый, продлевает срок
// и отмечает время использования. Сессия сохраняет свой id и метаданные
// устройства. Возвращает количество изменённых строк: 0 означает, что
// сессию успели отозвать.
func (s *Storage) RotateRefreshToken(ctx context.Context, id, tokenHash string, expiresAt, usedAt time.Time) (int, error) {
	const op = "storage.RotateRefreshToken"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE refresh_tokens
			  SET token_hash = $1, expires_at = $2, last_used_at = $3
			  WHERE id = $4 AND revoked_at IS NULL`
	result, err := s.DB.ExecContext(ctx, query, tokenHash, expiresAt, usedAt, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// RevokeRefreshToken отзывает сессию по хэшу токена и возвращает
// количество изменённых строк.
func (s *Storage) RevokeRefreshToken(ctx context.Context, tokenHash string) (int, error) {
	const op = "storage.RevokeRefreshToken"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE refresh_tokens SET revoked_at = now()
			  WHERE token_hash = $1 AND revoked_at IS NULL`
	result, err := s.DB.ExecContext(ctx, query, tokenHash)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// RevokeRefreshTokenByID отзывает одну сессию пользователя по ее id.
func (s *Storage) RevokeRefreshTokenByID(ctx context.Context, id, userID string) (int, error) {
	const op = "storage.RevokeRefreshTokenByID"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE refresh_tokens SET revoked_at = now()
			  WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL`
	result, err := s.DB.ExecContext(ctx, query, id, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// RevokeAllRefreshTokens отзывает все сессии пользователя.
func (s *Storage) RevokeAllRefreshTokens(ctx context.Context, userID string) (int, error) {
	const op = "storage.RevokeAllRefreshTokens"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE refresh_tokens SET revoked_at = now()
			  WHERE user_id = $1 AND revoked_at IS NULL`
	result, err := s.DB.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ListSessions возвращает живые сессии пользователя.
func (s *Storage) ListSessions(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	const op = "storage.ListSessions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, token_hash, device_info, ip_address, expires_at,
			      revoked_at, created_at, last_used_at
			  FROM refresh_tokens
			  WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > now()
			  ORDER BY created_at DESC`
	rows, err := s.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.RefreshToken
	for rows.Next() {
		t := &models.RefreshToken{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.DeviceInfo, &t.IPAddress,
			&t.ExpiresAt, &t.RevokedAt, &t.CreatedAt, &t.LastUsedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DeleteExpiredRefreshTokens удаляет истекшие и отозванные сессии.
// Вызывается планировщиком.
func (s *Storage) DeleteExpiredRefreshTokens(ctx context.Context) (int, error) {
	const op = "storage.DeleteExpiredRefreshTokens"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM refresh_tokens WHERE expires_at < now() OR revoked_at IS NOT NULL`
	result, err := s.DB.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// CreateOneTimeToken сохраняет одноразовый токен (magic link или сброс пароля).
func (s *Storage) CreateOneTimeToken(ctx context.Context, email, tokenHash string, purpose models.TokenPurpose, expiresAt time.Time) (string, error) {
	const op = "storage.CreateOneTimeToken"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO one_time_tokens (user_email, token_hash, purpose, expires_at)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id`
	var id string
	if err := s.DB.QueryRowContext(ctx, query, email, tokenHash, purpose, expiresAt).Scan(&id); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// ConsumeOneTimeToken атомарно помечает токен использованным и возвращает
// его. Повторное использование и истекшие токены дают sql.ErrNoRows.
func (s *Storage) ConsumeOneTimeToken(ctx context.Context, tokenHash string, purpose models.TokenPurpose) (*models.OneTimeToken, error) {
	const op = "storage.ConsumeOneTimeToken"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE one_time_tokens
			  SET used_at = now()
			  WHERE token_hash = $1 AND purpose = $2 AND used_at IS NULL AND expires_at > now()
			  RETURNING id, user_email, token_hash, purpose, expires_at, used_at, created_at`
	t := &models.OneTimeToken{}
	var p string
	row := s.DB.QueryRowContext(ctx, query, tokenHash, purpose)
	if err := row.Scan(&t.ID, &t.UserEmail, &t.TokenHash, &p, &t.ExpiresAt,
		&t.UsedAt, &t.CreatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t.Purpose = models.TokenPurpose(p)
	return t, nil
}
