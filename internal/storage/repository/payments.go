package repository

import (
	"context"
	"fmt"

	"github.com/a8n-tools/platform/internal/models"
)

const paymentColumns = `id, user_id, membership_id, stripe_payment_intent_id, stripe_invoice_id,
			      amount, currency, status, failure_reason, refunded_at, refund_amount, created_at`

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	p := &models.Payment{}
	var status string
	if err := row.Scan(&p.ID, &p.UserID, &p.MembershipID, &p.StripePaymentIntentID,
		&p.StripeInvoiceID, &p.Amount, &p.Currency, &status, &p.FailureReason,
		&p.RefundedAt, &p.RefundAmount, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Status = models.PaymentStatus(status)
	return p, nil
}

// CreatePayment записывает платеж в историю и возвращает его ID.
// По stripe_invoice_id стоит уникальный индекс, повторное событие
// по тому же инвойсу обновляет статус вместо вставки дубликата.
func (s *Storage) CreatePayment(ctx context.Context, p models.CreatePayment) (string, error) {
	const op = "storage.CreatePayment"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO payments (user_id, membership_id, stripe_payment_intent_id,
			      stripe_invoice_id, amount, currency, status, failure_reason)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  ON CONFLICT (stripe_invoice_id) DO UPDATE
			  SET status = EXCLUDED.status,
			      failure_reason = EXCLUDED.failure_reason
			  RETURNING id`
	var id string
	if err := s.DB.QueryRowContext(ctx, query,
		p.UserID, p.MembershipID, p.StripePaymentIntentID, p.StripeInvoiceID,
		p.Amount, p.Currency, p.Status, p.FailureReason).Scan(&id); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// ListPaymentsByUser возвращает страницу истории платежей пользователя.
func (s *Storage) ListPaymentsByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Payment, error) {
	const op = "storage.ListPaymentsByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + paymentColumns + `
			  FROM payments
			  WHERE user_id = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountPaymentsByUser возвращает число платежей пользователя.
func (s *Storage) CountPaymentsByUser(ctx context.Context, userID string) (int, error) {
	const op = "storage.CountPaymentsByUser"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var total int
	query := `SELECT COUNT(*) FROM payments WHERE user_id = $1`
	if err := s.DB.QueryRowContext(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, nil
}

// SumRevenue возвращает суммарную выручку по успешным платежам в центах.
func (s *Storage) SumRevenue(ctx context.Context) (int, error) {
	const op = "storage.SumRevenue"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var total int
	query := `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = 'succeeded'`
	if err := s.DB.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, nil
}
