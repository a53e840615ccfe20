package billing

import "time"

// Минимальные представления объектов Stripe из webhook-событий.
// Декодируются из event.Data.Raw; полные структуры SDK не нужны,
// а ссылочные поля (customer, subscription) в событиях приходят строками.

// CheckoutSessionEvent событие checkout.session.completed.
type CheckoutSessionEvent struct {
	ID           string            `json:"id"`
	Mode         string            `json:"mode"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

// SubscriptionEvent события customer.subscription.*.
type SubscriptionEvent struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CanceledAt         int64  `json:"canceled_at"`
	Items              struct {
		Data []struct {
			Price struct {
				ID         string `json:"id"`
				UnitAmount int    `json:"unit_amount"`
				Currency   string `json:"currency"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

// FirstPrice возвращает прайс первой позиции подписки.
func (s *SubscriptionEvent) FirstPrice() (id string, amount int, currency string) {
	for _, item := range s.Items.Data {
		if item.Price.ID != "" {
			return item.Price.ID, item.Price.UnitAmount, item.Price.Currency
		}
	}
	return "", 0, ""
}

// PeriodStart возвращает начало оплаченного периода.
func (s *SubscriptionEvent) PeriodStart() time.Time {
	return time.Unix(s.CurrentPeriodStart, 0).UTC()
}

// PeriodEnd возвращает конец оплаченного периода.
func (s *SubscriptionEvent) PeriodEnd() time.Time {
	return time.Unix(s.CurrentPeriodEnd, 0).UTC()
}

// InvoiceEvent события invoice.payment_succeeded и invoice.payment_failed.
type InvoiceEvent struct {
	ID               string `json:"id"`
	Customer         string `json:"customer"`
	Subscription     string `json:"subscription"`
	PaymentIntent    string `json:"payment_intent"`
	AmountPaid       int    `json:"amount_paid"`
	AmountDue        int    `json:"amount_due"`
	Currency         string `json:"currency"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}
