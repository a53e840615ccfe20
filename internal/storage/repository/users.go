package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/a8n-tools/platform/internal/models"
)

const userColumns = `id, email, email_verified, password_hash, role, stripe_customer_id,
			      membership_status, membership_tier, price_locked, locked_price_id,
			      locked_price_amount, grace_period_start, grace_period_end,
			      created_at, updated_at, last_login_at, deleted_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var role, status, tier string
	if err := row.Scan(&u.ID, &u.Email, &u.EmailVerified, &u.PasswordHash, &role,
		&u.StripeCustomerID, &status, &tier, &u.PriceLocked, &u.LockedPriceID,
		&u.LockedPriceAmount, &u.GracePeriodStart, &u.GracePeriodEnd,
		&u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt, &u.DeletedAt); err != nil {
		return nil, err
	}
	u.Role = models.ParseRole(role)
	u.MembershipStatus = models.ParseMembershipStatus(status)
	u.MembershipTier = models.ParseMembershipTier(tier)
	return u, nil
}

// CreateUser сохраняет нового пользователя и возвращает его ID.
func (s *Storage) CreateUser(ctx context.Context, user models.CreateUser) (string, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID string
	query := `INSERT INTO users (email, password_hash, role, membership_status, membership_tier)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.Role,
		models.MembershipNone, models.TierPersonal).Scan(&newID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetUserByEmail возвращает пользователя по email. Удаленные аккаунты
// не возвращаются.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE email = $1 AND deleted_at IS NULL`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUser возвращает пользователя по его ID.
func (s *Storage) GetUser(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByStripeCustomerID возвращает пользователя по идентификатору
// клиента Stripe. Используется при обработке webhook-событий.
func (s *Storage) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	const op = "storage.GetUserByStripeCustomerID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE stripe_customer_id = $1 AND deleted_at IS NULL`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, customerID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// SetStripeCustomerID привязывает идентификатор клиента Stripe к пользователю.
func (s *Storage) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	const op = "storage.SetStripeCustomerID"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET stripe_customer_id = $1, updated_at = now() WHERE id = $2`
	if _, err := s.DB.ExecContext(ctx, query, customerID, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateLastLogin отмечает время последнего входа.
func (s *Storage) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	const op = "storage.UpdateLastLogin"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET last_login_at = $1, updated_at = now() WHERE id = $2`
	if _, err := s.DB.ExecContext(ctx, query, at, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdatePasswordHash заменяет хэш пароля пользователя.
func (s *Storage) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	const op = "storage.UpdatePasswordHash"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`
	if _, err := s.DB.ExecContext(ctx, query, passwordHash, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetEmailVerified помечает email подтвержденным.
func (s *Storage) SetEmailVerified(ctx context.Context, userID string) error {
	const op = "storage.SetEmailVerified"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET email_verified = TRUE, updated_at = now() WHERE id = $1`
	if _, err := s.DB.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateUserRole изменяет роль пользователя и возвращает количество
// изменённых строк.
func (s *Storage) UpdateUserRole(ctx context.Context, userID string, role models.Role) (int, error) {
	const op = "storage.UpdateUserRole"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET role = $1, updated_at = now() WHERE id = $2`
	result, err := s.DB.ExecContext(ctx, query, role, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// MembershipState срез полей подписки на карточке пользователя.
// Обновляется целиком при каждом событии биллинга.
type MembershipState struct {
	Status            models.MembershipStatus
	Tier              models.MembershipTier
	PriceLocked       bool
	LockedPriceID     *string
	LockedPriceAmount *int
	GracePeriodStart  *time.Time
	GracePeriodEnd    *time.Time
}

// UpdateMembershipState перезаписывает состояние подписки у пользователя.
func (s *Storage) UpdateMembershipState(ctx context.Context, userID string, state MembershipState) error {
	const op = "storage.UpdateMembershipState"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET membership_status = $1, membership_tier = $2, price_locked = $3,
			      locked_price_id = $4, locked_price_amount = $5,
			      grace_period_start = $6, grace_period_end = $7, updated_at = now()
			  WHERE id = $8`
	if _, err := s.DB.ExecContext(ctx, query,
		state.Status, state.Tier, state.PriceLocked,
		state.LockedPriceID, state.LockedPriceAmount,
		state.GracePeriodStart, state.GracePeriodEnd, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateMembershipStatus обновляет только статус подписки пользователя.
func (s *Storage) UpdateMembershipStatus(ctx context.Context, userID string, status models.MembershipStatus) error {
	const op = "storage.UpdateMembershipStatus"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET membership_status = $1, updated_at = now() WHERE id = $2`
	if _, err := s.DB.ExecContext(ctx, query, status, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SoftDeleteUser помечает аккаунт удаленным и возвращает количество
// изменённых строк.
func (s *Storage) SoftDeleteUser(ctx context.Context, userID string) (int, error) {
	const op = "storage.SoftDeleteUser"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET deleted_at = now(), updated_at = now()
			  WHERE id = $1 AND deleted_at IS NULL`
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

// ListUsers возвращает страницу пользователей с фильтрацией по подстроке
// email и статусу подписки.
func (s *Storage) ListUsers(ctx context.Context, filter models.UserFilter, limit, offset int) ([]*models.User, error) {
	const op = "storage.ListUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE deleted_at IS NULL
			    AND ($1 = '' OR email ILIKE '%' || $1 || '%')
			    AND ($2::text IS NULL OR membership_status = $2)
			  ORDER BY created_at DESC
			  LIMIT $3 OFFSET $4`
	rows, err := s.DB.QueryContext(ctx, query, filter.Search, statusArg(filter.Status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountUsers возвращает число пользователей под фильтром.
func (s *Storage) CountUsers(ctx context.Context, filter models.UserFilter) (int, error) {
	const op = "storage.CountUsers"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*)
			  FROM users
			  WHERE deleted_at IS NULL
			    AND ($1 = '' OR email ILIKE '%' || $1 || '%')
			    AND ($2::text IS NULL OR membership_status = $2)`
	var total int
	if err := s.DB.QueryRowContext(ctx, query, filter.Search, statusArg(filter.Status)).Scan(&total); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, nil
}

// CountUsersByStatus возвращает число активных пользователей с указанным
// статусом подписки. Используется в статистике админки.
func (s *Storage) CountUsersByStatus(ctx context.Context, status models.MembershipStatus) (int, error) {
	const op = "storage.CountUsersByStatus"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*) FROM users
			  WHERE deleted_at IS NULL AND membership_status = $1`
	var total int
	if err := s.DB.QueryRowContext(ctx, query, status).Scan(&total); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, nil
}

// ListUsersWithExpiredGrace возвращает пользователей в статусе past_due,
// у которых grace-период уже истек к моменту now.
func (s *Storage) ListUsersWithExpiredGrace(ctx context.Context, now time.Time) ([]*models.User, error) {
	const op = "storage.ListUsersWithExpiredGrace"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE deleted_at IS NULL
			    AND membership_status = $1
			    AND grace_period_end IS NOT NULL
			    AND grace_period_end < $2
			  ORDER BY grace_period_end`
	rows, err := s.DB.QueryContext(ctx, query, models.MembershipPastDue, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func statusArg(status *models.MembershipStatus) any {
	if status == nil {
		return nil
	}
	return string(*status)
}
