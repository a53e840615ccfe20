package models

import "time"

// PaymentStatus статус платежа.
type PaymentStatus string

const (
	// PaymentSucceeded платеж прошел.
	PaymentSucceeded PaymentStatus = "succeeded"
	// PaymentFailed платеж не прошел.
	PaymentFailed PaymentStatus = "failed"
	// PaymentPending платеж в обработке.
	PaymentPending PaymentStatus = "pending"
	// PaymentRefunded платеж возвращен.
	PaymentRefunded PaymentStatus = "refunded"
)

// Payment запись истории платежей. Только добавление, записи не изменяются
// (кроме отметки о возврате).
type Payment struct {
	ID                    string
	UserID                string
	MembershipID          *string
	StripePaymentIntentID *string
	StripeInvoiceID       *string
	Amount                int // В центах
	Currency              string
	Status                PaymentStatus
	FailureReason         *string
	RefundedAt            *time.Time
	RefundAmount          *int
	CreatedAt             time.Time
}

// CreatePayment данные для записи платежа из webhook-события.
type CreatePayment struct {
	UserID                string
	MembershipID          *string
	StripePaymentIntentID *string
	StripeInvoiceID       *string
	Amount                int
	Currency              string
	Status                PaymentStatus
	FailureReason         *string
}
