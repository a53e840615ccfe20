package membership

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	stripelib "github.com/stripe/stripe-go/v82"

	"github.com/a8n-tools/platform/internal/billing"
	"github.com/a8n-tools/platform/internal/lib/rabbitmq"
	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/models"
	"github.com/a8n-tools/platform/internal/storage/repository"
)

// Продолжительность grace-периода после неуспешного платежа.
const GracePeriodDays = 30

// HandleEvent маршрутизирует webhook-событие Stripe. Незнакомые типы
// событий игнорируются: Stripe шлет больше, чем платформа обрабатывает.
func (s *Service) HandleEvent(ctx context.Context, event *stripelib.Event) error {
	const op = "membership.HandleEvent"

	switch event.Type {
	case "checkout.session.completed":
		var sess billing.CheckoutSessionEvent
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("%s: decode checkout session: %w", op, err)
		}
		return s.handleCheckoutCompleted(ctx, sess)

	case "customer.subscription.created", "customer.subscription.updated":
		var sub billing.SubscriptionEvent
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("%s: decode subscription: %w", op, err)
		}
		return s.handleSubscriptionUpdated(ctx, sub)

	case "customer.subscription.deleted":
		var sub billing.SubscriptionEvent
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("%s: decode subscription: %w", op, err)
		}
		return s.handleSubscriptionDeleted(ctx, sub)

	case "invoice.payment_succeeded":
		var inv billing.InvoiceEvent
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("%s: decode invoice: %w", op, err)
		}
		return s.handlePaymentSucceeded(ctx, inv)

	case "invoice.payment_failed":
		var inv billing.InvoiceEvent
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("%s: decode invoice: %w", op, err)
		}
		return s.handlePaymentFailed(ctx, inv)

	default:
		s.log.Debug("ignoring stripe event", slog.String("type", string(event.Type)))
		return nil
	}
}

// handleCheckoutCompleted активирует подписку и фиксирует цену за
// пользователем. Цена, зафиксированная один раз, не пересматривается.
func (s *Service) handleCheckoutCompleted(ctx context.Context, sess billing.CheckoutSessionEvent) error {
	user, err := s.userForCustomer(ctx, sess.Customer, sess.Metadata["user_id"])
	if err != nil {
		return err
	}

	tier := models.ParseMembershipTier(sess.Metadata["tier"])
	state := repository.MembershipState{
		Status:            models.MembershipActive,
		Tier:              tier,
		PriceLocked:       user.PriceLocked,
		LockedPriceID:     user.LockedPriceID,
		LockedPriceAmount: user.LockedPriceAmount,
	}
	if !user.PriceLocked {
		priceID := s.billing.PriceIDForTier(tier)
		amount := TierAmountCents(tier)
		state.PriceLocked = true
		state.LockedPriceID = &priceID
		state.LockedPriceAmount = &amount
	}
	if err := s.repo.UpdateMembershipState(ctx, user.ID, state); err != nil {
		return err
	}

	s.audit.Record(ctx, models.NewAuditEntry(models.AuditMembershipCreated).
		WithActor(user.ID, user.Email, user.Role).
		WithResource("subscription", sess.Subscription).
		WithMetadata(map[string]any{"tier": string(tier)}))

	s.log.Info("membership activated",
		slog.String("user_id", user.ID), slog.String("tier", string(tier)))
	return nil
}

// handleSubscriptionUpdated зеркалирует объект подписки Stripe в базу.
// События могут приходить повторно, запись перезаписывается целиком.
func (s *Service) handleSubscriptionUpdated(ctx context.Context, sub billing.SubscriptionEvent) error {
	user, err := s.userForCustomer(ctx, sub.Customer, sub.Metadata["user_id"])
	if err != nil {
		return err
	}

	priceID, amount, currency := sub.FirstPrice()
	if currency == "" {
		currency = "usd"
	}
	if _, err := s.repo.UpsertMembership(ctx, models.CreateMembership{
		UserID:               user.ID,
		StripeSubscriptionID: sub.ID,
		StripePriceID:        priceID,
		Status:               sub.Status,
		CurrentPeriodStart:   sub.PeriodStart(),
		CurrentPeriodEnd:     sub.PeriodEnd(),
		Amount:               amount,
		Currency:             currency,
	}); err != nil {
		return err
	}
	if err := s.repo.SetCancelAtPeriodEnd(ctx, sub.ID, sub.CancelAtPeriodEnd); err != nil {
		return err
	}

	status := mapStripeStatus(sub.Status)
	state := repository.MembershipState{
		Status:            status,
		Tier:              user.MembershipTier,
		PriceLocked:       user.PriceLocked,
		LockedPriceID:     user.LockedPriceID,
		LockedPriceAmount: user.LockedPriceAmount,
	}
	// Активная подписка закрывает grace-период; past_due сохраняет его.
	if status != models.MembershipActive {
		state.GracePeriodStart = user.GracePeriodStart
		state.GracePeriodEnd = user.GracePeriodEnd
	}
	return s.repo.UpdateMembershipState(ctx, user.ID, state)
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, sub billing.SubscriptionEvent) error {
	user, err := s.userForCustomer(ctx, sub.Customer, sub.Metadata["user_id"])
	if err != nil {
		return err
	}

	canceledAt := time.Now().UTC()
	if sub.CanceledAt > 0 {
		canceledAt = time.Unix(sub.CanceledAt, 0).UTC()
	}
	if err := s.repo.MarkMembershipCanceled(ctx, sub.ID, canceledAt); err != nil {
		return err
	}
	if err := s.repo.UpdateMembershipState(ctx, user.ID, repository.MembershipState{
		Status:            models.MembershipCanceled,
		Tier:              user.MembershipTier,
		PriceLocked:       user.PriceLocked,
		LockedPriceID:     user.LockedPriceID,
		LockedPriceAmount: user.LockedPriceAmount,
	}); err != nil {
		return err
	}

	s.audit.Record(ctx, models.NewAuditEntry(models.AuditMembershipCanceled).
		WithActor(user.ID, user.Email, user.Role).
		WithResource("subscription", sub.ID))
	return nil
}

func (s *Service) handlePaymentSucceeded(ctx context.Context, inv billing.InvoiceEvent) error {
	user, err := s.userForCustomer(ctx, inv.Customer, "")
	if err != nil {
		return err
	}

	payment := models.CreatePayment{
		UserID:   user.ID,
		Amount:   inv.AmountPaid,
		Currency: inv.Currency,
		Status:   models.PaymentSucceeded,
	}
	if inv.ID != "" {
		payment.StripeInvoiceID = &inv.ID
	}
	if inv.PaymentIntent != "" {
		payment.StripePaymentIntentID = &inv.PaymentIntent
	}
	if m, err := s.repo.GetMembershipBySubscriptionID(ctx, inv.Subscription); err == nil {
		payment.MembershipID = &m.ID
	}
	if _, err := s.repo.CreatePayment(ctx, payment); err != nil {
		return err
	}

	// Успешный платеж закрывает grace-период.
	if err := s.repo.UpdateMembershipState(ctx, user.ID, repository.MembershipState{
		Status:            models.MembershipActive,
		Tier:              user.MembershipTier,
		PriceLocked:       user.PriceLocked,
		LockedPriceID:     user.LockedPriceID,
		LockedPriceAmount: user.LockedPriceAmount,
	}); err != nil {
		return err
	}

	s.audit.Record(ctx, models.NewAuditEntry(models.AuditPaymentSucceeded).
		WithActor(user.ID, user.Email, user.Role).
		WithResource("invoice", inv.ID))
	return nil
}

func (s *Service) handlePaymentFailed(ctx context.Context, inv billing.InvoiceEvent) error {
	user, err := s.userForCustomer(ctx, inv.Customer, "")
	if err != nil {
		return err
	}

	payment := models.CreatePayment{
		UserID:   user.ID,
		Amount:   inv.AmountDue,
		Currency: inv.Currency,
		Status:   models.PaymentFailed,
	}
	if inv.ID != "" {
		payment.StripeInvoiceID = &inv.ID
	}
	if inv.LastPaymentError != nil {
		payment.FailureReason = &inv.LastPaymentError.Message
	}
	if _, err := s.repo.CreatePayment(ctx, payment); err != nil {
		return err
	}

	// Первый неуспешный платеж открывает grace-период; повторные его
	// не продлевают.
	graceStart := user.GracePeriodStart
	graceEnd := user.GracePeriodEnd
	if graceEnd == nil {
		now := time.Now().UTC()
		end := now.AddDate(0, 0, GracePeriodDays)
		graceStart, graceEnd = &now, &end
	}
	if err := s.repo.UpdateMembershipState(ctx, user.ID, repository.MembershipState{
		Status:            models.MembershipPastDue,
		Tier:              user.MembershipTier,
		PriceLocked:       user.PriceLocked,
		LockedPriceID:     user.LockedPriceID,
		LockedPriceAmount: user.LockedPriceAmount,
		GracePeriodStart:  graceStart,
		GracePeriodEnd:    graceEnd,
	}); err != nil {
		return err
	}

	s.audit.Record(ctx, models.NewAuditEntry(models.AuditPaymentFailed).
		WithActor(user.ID, user.Email, user.Role).
		WithResource("invoice", inv.ID).
		WithSeverity(models.SeverityWarning))

	if err := s.publisher.Publish(rabbitmq.RoutingKeyNotification, models.NotificationEvent{
		Type:    models.NotificationPaymentFailed,
		Title:   "Payment failed",
		Message: fmt.Sprintf("Payment failed for %s, grace period until %s", user.Email, graceEnd.Format(time.DateOnly)),
		UserID:  &user.ID,
	}); err != nil {
		s.log.Error("failed to publish payment_failed notification", sl.Err(err))
	}

	if err := s.publisher.Publish(rabbitmq.RoutingKeyEmail, models.EmailMessage{
		To:      user.Email,
		Subject: "Payment failed",
		Body: fmt.Sprintf("We could not process your payment. Your access continues until %s. Please update your payment method.",
			graceEnd.Format(time.DateOnly)),
	}); err != nil {
		s.log.Error("failed to publish payment_failed email", sl.Err(err))
	}
	return nil
}

// userForCustomer находит пользователя по Stripe customer id, с запасным
// путем через metadata user_id для событий, пришедших до привязки клиента.
func (s *Service) userForCustomer(ctx context.Context, customerID, metaUserID string) (*models.User, error) {
	user, err := s.repo.GetUserByStripeCustomerID(ctx, customerID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if metaUserID == "" {
		return nil, fmt.Errorf("no user for stripe customer %s: %w", customerID, err)
	}
	user, err = s.repo.GetUser(ctx, metaUserID)
	if err != nil {
		return nil, err
	}
	if user.StripeCustomerID == nil && customerID != "" {
		if err := s.repo.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
			s.log.Warn("failed to link stripe customer", sl.Err(err))
		}
	}
	return user, nil
}

// mapStripeStatus переводит статус подписки Stripe во внутренний.
// Неизвестные статусы дают none: доступ закрыт по умолчанию.
func mapStripeStatus(s string) models.MembershipStatus {
	switch s {
	case "active", "trialing":
		return models.MembershipActive
	case "past_due", "unpaid":
		return models.MembershipPastDue
	case "canceled":
		return models.MembershipCanceled
	case "incomplete", "incomplete_expired":
		return models.MembershipIncomplete
	default:
		return models.MembershipNone
	}
}
