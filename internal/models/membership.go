package models

import "time"

// MembershipStatus статус подписки пользователя на платформу.
// Все переходы статуса подтверждаются сервером (webhooks Stripe);
// клиентская сторона статусы не вычисляет.
type MembershipStatus string

const (
	// MembershipNone подписки никогда не было.
	MembershipNone MembershipStatus = "none"
	// MembershipActive подписка оплачена и активна.
	MembershipActive MembershipStatus = "active"
	// MembershipPastDue платеж не прошел, действует grace-период.
	MembershipPastDue MembershipStatus = "past_due"
	// MembershipCanceled подписка отменена.
	MembershipCanceled MembershipStatus = "canceled"
	// MembershipIncomplete оформление не завершено (оплата не подтверждена).
	MembershipIncomplete MembershipStatus = "incomplete"
)

// ParseMembershipStatus приводит строку к статусу подписки.
// Неизвестные значения считаются none: доступ закрыт по умолчанию.
func ParseMembershipStatus(s string) MembershipStatus {
	switch MembershipStatus(s) {
	case MembershipActive, MembershipPastDue, MembershipCanceled, MembershipIncomplete:
		return MembershipStatus(s)
	default:
		return MembershipNone
	}
}

// HasAccess сообщает, дает ли статус доступ к платным приложениям.
// Grace-период (past_due) сохраняет доступ.
func (s MembershipStatus) HasAccess() bool {
	return s == MembershipActive || s == MembershipPastDue
}

// MembershipTier тариф подписки.
type MembershipTier string

const (
	// TierPersonal базовый тариф.
	TierPersonal MembershipTier = "personal"
	// TierBusiness расширенный тариф, доступен за фиче-флагом.
	TierBusiness MembershipTier = "business"
)

// ParseMembershipTier приводит строку к тарифу, по умолчанию personal.
func ParseMembershipTier(s string) MembershipTier {
	if MembershipTier(s) == TierBusiness {
		return TierBusiness
	}
	return TierPersonal
}

// Membership запись о подписке пользователя, зеркало объекта Stripe.
// Один к одному с User; владелец данных — биллинг.
type Membership struct {
	ID                   string
	UserID               string
	StripeSubscriptionID string
	StripePriceID        string
	Status               string // Статус в терминологии Stripe
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
	CancelAtPeriodEnd    bool
	CanceledAt           *time.Time
	Amount               int // Цена за период в центах
	Currency             string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// CreateMembership данные для создания записи подписки из webhook-события.
type CreateMembership struct {
	UserID               string
	StripeSubscriptionID string
	StripePriceID        string
	Status               string
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
	Amount               int
	Currency             string
}

// MembershipInfo агрегированное состояние подписки для выдачи клиенту.
type MembershipInfo struct {
	Status            MembershipStatus `json:"status"`
	Tier              MembershipTier   `json:"tier"`
	PriceLocked       bool             `json:"price_locked"`
	LockedPriceAmount *int             `json:"locked_price_amount,omitempty"`
	CurrentPeriodEnd  *time.Time       `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool             `json:"cancel_at_period_end"`
	GracePeriodEnd    *time.Time       `json:"grace_period_end,omitempty"`
}
