// Package membership содержит бизнес-логику подписки на платформу:
// оформление через Stripe Checkout, отмену, возобновление, биллинг-портал
// и обработку webhook-событий. Все переходы статуса подтверждаются
// сервером, клиент статусы не вычисляет.
package membership

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/a8n-tools/platform/internal/config"
	"github.com/a8n-tools/platform/internal/models"
	"github.com/a8n-tools/platform/internal/services/audit"
	"github.com/a8n-tools/platform/internal/storage/repository"
)

// Ошибки уровня бизнес-логики.
var (
	ErrAlreadyActive   = errors.New("membership is already active")
	ErrNoMembership    = errors.New("no membership found")
	ErrNotCanceling    = errors.New("membership is not pending cancellation")
	ErrTierUnavailable = errors.New("tier is not available")
)

// Стоимость тарифов в центах. Для пользователей с price lock действует
// зафиксированная цена, а не текущая.
const (
	PersonalPriceCents = 300
	BusinessPriceCents = 1500
)

// Repository определяет методы хранилища, нужные биллингу.
type Repository interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
	UpdateMembershipState(ctx context.Context, userID string, state repository.MembershipState) error

	UpsertMembership(ctx context.Context, m models.CreateMembership) (string, error)
	GetMembershipByUserID(ctx context.Context, userID string) (*models.Membership, error)
	GetMembershipBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Membership, error)
	MarkMembershipCanceled(ctx context.Context, subscriptionID string, canceledAt time.Time) error
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error

	CreatePayment(ctx context.Context, p models.CreatePayment) (string, error)
	ListPaymentsByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Payment, error)
	CountPaymentsByUser(ctx context.Context, userID string) (int, error)
}

// BillingClient определяет операции Stripe, которые использует сервис.
type BillingClient interface {
	CreateCustomer(email, userID string) (string, error)
	CreateCheckoutSession(customerID, userID string, tier models.MembershipTier) (string, error)
	CancelSubscription(subscriptionID string) error
	CancelSubscriptionNow(subscriptionID string) error
	ReactivateSubscription(subscriptionID string) error
	BillingPortalURL(customerID, returnURL string) (string, error)
	PriceIDForTier(tier models.MembershipTier) string
}

// Publisher публикует сообщения в брокер.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// Service реализует бизнес-логику подписки.
type Service struct {
	repo               Repository
	billing            BillingClient
	publisher          Publisher
	audit              *audit.Service
	log                *slog.Logger
	returnURL          string
	enableBusinessTier bool
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, billing BillingClient, publisher Publisher, auditSvc *audit.Service, log *slog.Logger, cfg *config.Config) *Service {
	return &Service{
		repo:               repo,
		billing:            billing,
		publisher:          publisher,
		audit:              auditSvc,
		log:                log,
		returnURL:          cfg.App.BaseURL,
		enableBusinessTier: cfg.App.EnableBusinessTier,
	}
}

// Current возвращает агрегированное состояние подписки пользователя.
func (s *Service) Current(ctx context.Context, userID string) (*models.MembershipInfo, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	info := &models.MembershipInfo{
		Status:            user.MembershipStatus,
		Tier:              user.MembershipTier,
		PriceLocked:       user.PriceLocked,
		LockedPriceAmount: user.LockedPriceAmount,
		GracePeriodEnd:    user.GracePeriodEnd,
	}

	m, err := s.repo.GetMembershipByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return info, nil
		}
		return nil, err
	}
	info.CurrentPeriodEnd = &m.CurrentPeriodEnd
	info.CancelAtPeriodEnd = m.CancelAtPeriodEnd
	return info, nil
}

// Checkout создает checkout-сессию Stripe и возвращает URL для оплаты.
func (s *Service) Checkout(ctx context.Context, userID string, tier models.MembershipTier) (string, error) {
	if tier == models.TierBusiness && !s.enableBusinessTier {
		return "", ErrTierUnavailable
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.MembershipStatus == models.MembershipActive {
		return "", ErrAlreadyActive
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return "", err
	}
	return s.billing.CreateCheckoutSession(customerID, user.ID, tier)
}

// Cancel помечает подписку к отмене в конце оплаченного периода.
// Доступ сохраняется до конца периода.
func (s *Service) Cancel(ctx context.Context, userID, ip string) error {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	m, err := s.repo.GetMembershipByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoMembership
		}
		return err
	}

	if err := s.billing.CancelSubscription(m.StripeSubscriptionID); err != nil {
		return err
	}
	if err := s.repo.SetCancelAtPeriodEnd(ctx, m.StripeSubscriptionID, true); err != nil {
		return err
	}

	s.audit.Record(ctx, models.NewAuditEntry(models.AuditMembershipCanceled).
		WithActor(user.ID, user.Email, user.Role).
		WithIP(ip).
		WithResource("membership", m.ID))
	return nil
}

// CancelImmediately отменяет подписку сразу, без ожидания конца периода.
// Доступ теряется немедленно, деньги за остаток периода не возвращаются.
func (s *Service) CancelImmediately(ctx context.Context, userID, ip string) error {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	m, err := s.repo.GetMembershipByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoMembership
		}
		return err
	}

	if err := s.billing.CancelSubscriptionNow(m.StripeSubscriptionID); err != nil {
		return err
	}
	// Webhook про subscription.deleted придет позже, но статус меняем сразу,
	// чтобы доступ пропал без задержки.
	if err := s.repo.MarkMembershipCanceled(ctx, m.StripeSubscriptionID, time.Now().UTC()); err != nil {
		return err
	}
	state := repository.MembershipState{
		Status:            models.MembershipCanceled,
		Tier:              user.MembershipTier,
		PriceLocked:       user.PriceLocked,
		LockedPriceID:     user.LockedPriceID,
		LockedPriceAmount: user.LockedPriceAmount,
	}
	if err := s.repo.UpdateMembershipState(ctx, userID, state); err != nil {
		return err
	}

	s.audit.Record(ctx, models.NewAuditEntry(models.AuditMembershipCanceled).
		WithActor(user.ID, user.Email, user.Role).
		WithIP(ip).
		WithResource("membership", m.ID).
		WithSeverity(models.SeverityWarning))
	return nil
}

// Reactivate снимает отложенную отмену, пока период не истек.
func (s *Service) Reactivate(ctx context.Context, userID, ip string) error {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	m, err := s.repo.GetMembershipByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoMembership
		}
		return err
	}
	if !m.CancelAtPeriodEnd {
		return ErrNotCanceling
	}

	if err := s.billing.ReactivateSubscription(m.StripeSubscriptionID); err != nil {
		return err
	}
	if err := s.repo.SetCancelAtPeriodEnd(ctx, m.StripeSubscriptionID, false); err != nil {
		return err
	}

	s.audit.Record(ctx, models.NewAuditEntry(models.AuditMembershipReactivated).
		WithActor(user.ID, user.Email, user.Role).
		WithIP(ip).
		WithResource("membership", m.ID))
	return nil
}

// BillingPortal возвращает URL сессии биллинг-портала Stripe.
func (s *Service) BillingPortal(ctx context.Context, userID string) (string, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.StripeCustomerID == nil {
		return "", ErrNoMembership
	}
	return s.billing.BillingPortalURL(*user.StripeCustomerID, s.returnURL)
}

// Payments возвращает страницу истории платежей пользователя.
func (s *Service) Payments(ctx context.Context, userID string, limit, offset int) ([]*models.Payment, int, error) {
	payments, err := s.repo.ListPaymentsByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountPaymentsByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// TierAmountCents возвращает текущую цену тарифа в центах.
func TierAmountCents(tier models.MembershipTier) int {
	if tier == models.TierBusiness {
		return BusinessPriceCents
	}
	return PersonalPriceCents
}

func (s *Service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != nil {
		return *user.StripeCustomerID, nil
	}
	customerID, err := s.billing.CreateCustomer(user.Email, user.ID)
	if err != nil {
		return "", err
	}
	if err := s.repo.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
		return "", err
	}
	return customerID, nil
}
