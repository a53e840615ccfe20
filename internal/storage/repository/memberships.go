package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/a8n-tools/platform/internal/models"
)

const membershipColumns = `id, user_id, stripe_subscription_id, stripe_price_id, status,
			      current_period_start, current_period_end, cancel_at_period_end,
			      canceled_at, amount, currency, created_at, updated_at`

func scanMembership(row interface{ Scan(...any) error }) (*models.Membership, error) {
	m := &models.Membership{}
	if err := row.Scan(&m.ID, &m.UserID, &m.StripeSubscriptionID, &m.StripePriceID,
		&m.Status, &m.CurrentPeriodStart, &m.CurrentPeriodEnd, &m.CancelAtPeriodEnd,
		&m.CanceledAt, &m.Amount, &m.Currency, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

// UpsertMembership вставляет или обновляет запись подписки по
// stripe_subscription_id. Webhook-события могут приходить повторно и не
// по порядку, поэтому запись перезаписывается целиком.
func (s *Storage) UpsertMembership(ctx context.Context, m models.CreateMembership) (string, error) {
	const op = "storage.UpsertMembership"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO memberships (user_id, stripe_subscription_id, stripe_price_id, status,
			      current_period_start, current_period_end, amount, currency)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  ON CONFLICT (stripe_subscription_id) DO UPDATE
			  SET stripe_price_id = EXCLUDED.stripe_price_id,
			      status = EXCLUDED.status,
			      current_period_start = EXCLUDED.current_period_start,
			      current_period_end = EXCLUDED.current_period_end,
			      amount = EXCLUDED.amount,
			      currency = EXCLUDED.currency,
			      updated_at = now()
			  RETURNING id`
	var id string
	if err := s.DB.QueryRowContext(ctx, query,
		m.UserID, m.StripeSubscriptionID, m.StripePriceID, m.Status,
		m.CurrentPeriodStart, m.CurrentPeriodEnd, m.Amount, m.Currency).Scan(&id); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// GetMembershipByUserID возвращает последнюю запись подписки пользователя.
func (s *Storage) GetMembershipByUserID(ctx context.Context, userID string) (*models.Membership, error) {
	const op = "storage.GetMembershipByUserID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + membershipColumns + `
			  FROM memberships
			  WHERE user_id = $1
			  ORDER BY created_at DESC
			  LIMIT 1`
	m, err := scanMembership(s.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// GetMembershipBySubscriptionID возвращает запись по идентификатору
// подписки Stripe.
func (s *Storage) GetMembershipBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Membership, error) {
	const op = "storage.GetMembershipBySubscriptionID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + membershipColumns + `
			  FROM memberships
			  WHERE stripe_subscription_id = $1`
	m, err := scanMembership(s.DB.QueryRowContext(ctx, query, subscriptionID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// MarkMembershipCanceled помечает подписку отменённой.
func (s *Storage) MarkMembershipCanceled(ctx context.Context, subscriptionID string, canceledAt time.Time) error {
	const op = "storage.MarkMembershipCanceled"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE memberships
			  SET status = 'canceled', canceled_at = $1, updated_at = now()
			  WHERE stripe_subscription_id = $2`
	if _, err := s.DB.ExecContext(ctx, query, canceledAt, subscriptionID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetCancelAtPeriodEnd выставляет или снимает флаг отмены в конце периода.
func (s *Storage) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error {
	const op = "storage.SetCancelAtPeriodEnd"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE memberships
			  SET cancel_at_period_end = $1, updated_at = now()
			  WHERE stripe_subscription_id = $2`
	if _, err := s.DB.ExecContext(ctx, query, cancel, subscriptionID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListMemberships возвращает страницу всех подписок для админки.
func (s *Storage) ListMemberships(ctx context.Context, limit, offset int) ([]*models.Membership, error) {
	const op = "storage.ListMemberships"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + membershipColumns + `
			  FROM memberships
			  ORDER BY created_at DESC
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountMemberships возвращает общее число записей подписок.
func (s *Storage) CountMemberships(ctx context.Context) (int, error) {
	const op = "storage.CountMemberships"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var total int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM memberships`).Scan(&total); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, nil
}
