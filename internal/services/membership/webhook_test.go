package membership

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	stripelib "github.com/stripe/stripe-go/v82"

	"github.com/a8n-tools/platform/internal/config"
	"github.com/a8n-tools/platform/internal/models"
	"github.com/a8n-tools/platform/internal/services/audit"
	"github.com/a8n-tools/platform/internal/storage/repository"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockRepository) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	args := m.Called(ctx, customerID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockRepository) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	args := m.Called(ctx, userID, customerID)
	return args.Error(0)
}

func (m *MockRepository) UpdateMembershipState(ctx context.Context, userID string, state repository.MembershipState) error {
	args := m.Called(ctx, userID, state)
	return args.Error(0)
}

func (m *MockRepository) UpsertMembership(ctx context.Context, cm models.CreateMembership) (string, error) {
	args := m.Called(ctx, cm)
	return args.String(0), args.Error(1)
}

func (m *MockRepository) GetMembershipByUserID(ctx context.Context, userID string) (*models.Membership, error) {
	args := m.Called(ctx, userID)
	ms, _ := args.Get(0).(*models.Membership)
	return ms, args.Error(1)
}

func (m *MockRepository) GetMembershipBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Membership, error) {
	args := m.Called(ctx, subscriptionID)
	ms, _ := args.Get(0).(*models.Membership)
	return ms, args.Error(1)
}

func (m *MockRepository) MarkMembershipCanceled(ctx context.Context, subscriptionID string, canceledAt time.Time) error {
	args := m.Called(ctx, subscriptionID, canceledAt)
	return args.Error(0)
}

func (m *MockRepository) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error {
	args := m.Called(ctx, subscriptionID, cancel)
	return args.Error(0)
}

func (m *MockRepository) CreatePayment(ctx context.Context, p models.CreatePayment) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

func (m *MockRepository) ListPaymentsByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Payment, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}

func (m *MockRepository) CountPaymentsByUser(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type MockBilling struct {
	mock.Mock
}

func (m *MockBilling) CreateCustomer(email, userID string) (string, error) {
	args := m.Called(email, userID)
	return args.String(0), args.Error(1)
}

func (m *MockBilling) CreateCheckoutSession(customerID, userID string, tier models.MembershipTier) (string, error) {
	args := m.Called(customerID, userID, tier)
	return args.String(0), args.Error(1)
}

func (m *MockBilling) CancelSubscription(subscriptionID string) error {
	args := m.Called(subscriptionID)
	return args.Error(0)
}

func (m *MockBilling) CancelSubscriptionNow(subscriptionID string) error {
	args := m.Called(subscriptionID)
	return args.Error(0)
}

func (m *MockBilling) ReactivateSubscription(subscriptionID string) error {
	args := m.Called(subscriptionID)
	return args.Error(0)
}

func (m *MockBilling) BillingPortalURL(customerID, returnURL string) (string, error) {
	args := m.Called(customerID, returnURL)
	return args.String(0), args.Error(1)
}

func (m *MockBilling) PriceIDForTier(tier models.MembershipTier) string {
	args := m.Called(tier)
	return args.String(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(routingKey string, message any) error {
	args := m.Called(routingKey, message)
	return args.Error(0)
}

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) CreateAuditLog(ctx context.Context, entry models.CreateAuditLog) (string, error) {
	args := m.Called(ctx, entry)
	return args.String(0), args.Error(1)
}

func (m *MockAuditRepository) ListAuditLogs(ctx context.Context, filter models.AuditLogFilter, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditLog), args.Error(1)
}

func (m *MockAuditRepository) CountAuditLogs(ctx context.Context, filter models.AuditLogFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newTestService(repo *MockRepository, b *MockBilling, pub *MockPublisher, auditRepo *MockAuditRepository) *Service {
	log := newNoopLogger()
	cfg := &config.Config{}
	cfg.App.BaseURL = "https://a8n.tools"
	return NewService(repo, b, pub, audit.NewService(auditRepo, log), log, cfg)
}

func stripeEvent(t *testing.T, eventType string, payload any) *stripelib.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return &stripelib.Event{
		Type: stripelib.EventType(eventType),
		Data: &stripelib.EventData{Raw: raw},
	}
}

func TestMapStripeStatus(t *testing.T) {
	tests := []struct {
		stripeStatus string
		want         models.MembershipStatus
	}{
		{"active", models.MembershipActive},
		{"trialing", models.MembershipActive},
		{"past_due", models.MembershipPastDue},
		{"unpaid", models.MembershipPastDue},
		{"canceled", models.MembershipCanceled},
		{"incomplete", models.MembershipIncomplete},
		{"incomplete_expired", models.MembershipIncomplete},
		{"paused", models.MembershipNone},
		{"", models.MembershipNone},
		{"something_new", models.MembershipNone},
	}

	for _, tt := range tests {
		t.Run(tt.stripeStatus, func(t *testing.T) {
			assert.Equal(t, tt.want, mapStripeStatus(tt.stripeStatus))
		})
	}
}

func TestHandleEvent_IgnoresUnknownType(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockBilling), new(MockPublisher), new(MockAuditRepository))

	event := stripeEvent(t, "customer.updated", map[string]any{"id": "cus_123"})

	err := svc.HandleEvent(context.Background(), event)

	assert.NoError(t, err)
	repo.AssertNotCalled(t, "GetUserByStripeCustomerID", mock.Anything, mock.Anything)
}

func TestHandleEvent_PaymentFailedOpensGracePeriod(t *testing.T) {
	repo := new(MockRepository)
	pub := new(MockPublisher)
	auditRepo := new(MockAuditRepository)
	svc := newTestService(repo, new(MockBilling), pub, auditRepo)

	user := &models.User{
		ID:               "user-1",
		Email:            "user@example.com",
		Role:             models.RoleSubscriber,
		MembershipStatus: models.MembershipActive,
		MembershipTier:   models.TierPersonal,
	}

	repo.On("GetUserByStripeCustomerID", mock.Anything, "cus_123").Return(user, nil).Once()
	repo.On("CreatePayment", mock.Anything, mock.MatchedBy(func(p models.CreatePayment) bool {
		return p.UserID == "user-1" && p.Status == models.PaymentFailed && p.Amount == 300
	})).Return("pay-1", nil).Once()
	repo.On("UpdateMembershipState", mock.Anything, "user-1", mock.MatchedBy(func(state repository.MembershipState) bool {
		if state.Status != models.MembershipPastDue {
			return false
		}
		if state.GracePeriodStart == nil || state.GracePeriodEnd == nil {
			return false
		}
		want := state.GracePeriodStart.AddDate(0, 0, GracePeriodDays)
		return state.GracePeriodEnd.Equal(want)
	})).Return(nil).Once()
	auditRepo.On("CreateAuditLog", mock.Anything, mock.MatchedBy(func(entry models.CreateAuditLog) bool {
		return entry.Action == models.AuditPaymentFailed && entry.Severity == models.SeverityWarning
	})).Return("audit-1", nil).Once()
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil).Twice()

	event := stripeEvent(t, "invoice.payment_failed", map[string]any{
		"id":           "in_123",
		"customer":     "cus_123",
		"subscription": "sub_123",
		"amount_due":   300,
		"currency":     "usd",
	})

	err := svc.HandleEvent(context.Background(), event)

	assert.NoError(t, err)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
	auditRepo.AssertExpectations(t)
}

func TestHandleEvent_RepeatedPaymentFailureKeepsGraceEnd(t *testing.T) {
	repo := new(MockRepository)
	pub := new(MockPublisher)
	auditRepo := new(MockAuditRepository)
	svc := newTestService(repo, new(MockBilling), pub, auditRepo)

	graceStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	graceEnd := graceStart.AddDate(0, 0, GracePeriodDays)
	user := &models.User{
		ID:               "user-1",
		Email:            "user@example.com",
		MembershipStatus: models.MembershipPastDue,
		MembershipTier:   models.TierPersonal,
		GracePeriodStart: &graceStart,
		GracePeriodEnd:   &graceEnd,
	}

	repo.On("GetUserByStripeCustomerID", mock.Anything, "cus_123").Return(user, nil).Once()
	repo.On("CreatePayment", mock.Anything, mock.Anything).Return("pay-2", nil).Once()
	repo.On("UpdateMembershipState", mock.Anything, "user-1", mock.MatchedBy(func(state repository.MembershipState) bool {
		return state.GracePeriodEnd != nil && state.GracePeriodEnd.Equal(graceEnd)
	})).Return(nil).Once()
	auditRepo.On("CreateAuditLog", mock.Anything, mock.Anything).Return("audit-2", nil).Once()
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil).Twice()

	event := stripeEvent(t, "invoice.payment_failed", map[string]any{
		"id":       "in_124",
		"customer": "cus_123",
		"currency": "usd",
	})

	err := svc.HandleEvent(context.Background(), event)

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestHandleEvent_PaymentSucceededClearsGracePeriod(t *testing.T) {
	repo := new(MockRepository)
	auditRepo := new(MockAuditRepository)
	svc := newTestService(repo, new(MockBilling), new(MockPublisher), auditRepo)

	graceStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	graceEnd := graceStart.AddDate(0, 0, GracePeriodDays)
	user := &models.User{
		ID:               "user-1",
		Email:            "user@example.com",
		MembershipStatus: models.MembershipPastDue,
		MembershipTier:   models.TierPersonal,
		GracePeriodStart: &graceStart,
		GracePeriodEnd:   &graceEnd,
	}

	repo.On("GetUserByStripeCustomerID", mock.Anything, "cus_123").Return(user, nil).Once()
	repo.On("GetMembershipBySubscriptionID", mock.Anything, "sub_123").Return(nil, sql.ErrNoRows).Once()
	repo.On("CreatePayment", mock.Anything, mock.MatchedBy(func(p models.CreatePayment) bool {
		return p.Status == models.PaymentSucceeded && p.Amount == 300
	})).Return("pay-3", nil).Once()
	repo.On("UpdateMembershipState", mock.Anything, "user-1", mock.MatchedBy(func(state repository.MembershipState) bool {
		return state.Status == models.MembershipActive &&
			state.GracePeriodStart == nil && state.GracePeriodEnd == nil
	})).Return(nil).Once()
	auditRepo.On("CreateAuditLog", mock.Anything, mock.Anything).Return("audit-3", nil).Once()

	event := stripeEvent(t, "invoice.payment_succeeded", map[string]any{
		"id":           "in_200",
		"customer":     "cus_123",
		"subscription": "sub_123",
		"amount_paid":  300,
		"currency":     "usd",
	})

	err := svc.HandleEvent(context.Background(), event)

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestHandleEvent_SubscriptionDeleted(t *testing.T) {
	repo := new(MockRepository)
	auditRepo := new(MockAuditRepository)
	svc := newTestService(repo, new(MockBilling), new(MockPublisher), auditRepo)

	user := &models.User{
		ID:             "user-1",
		Email:          "user@example.com",
		MembershipTier: models.TierPersonal,
	}
	canceledAt := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	repo.On("GetUserByStripeCustomerID", mock.Anything, "cus_123").Return(user, nil).Once()
	repo.On("MarkMembershipCanceled", mock.Anything, "sub_123", canceledAt).Return(nil).Once()
	repo.On("UpdateMembershipState", mock.Anything, "user-1", mock.MatchedBy(func(state repository.MembershipState) bool {
		return state.Status == models.MembershipCanceled
	})).Return(nil).Once()
	auditRepo.On("CreateAuditLog", mock.Anything, mock.MatchedBy(func(entry models.CreateAuditLog) bool {
		return entry.Action == models.AuditMembershipCanceled
	})).Return("audit-4", nil).Once()

	event := stripeEvent(t, "customer.subscription.deleted", map[string]any{
		"id":          "sub_123",
		"customer":    "cus_123",
		"canceled_at": canceledAt.Unix(),
	})

	err := svc.HandleEvent(context.Background(), event)

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestHandleEvent_CheckoutCompletedLocksPrice(t *testing.T) {
	repo := new(MockRepository)
	billing := new(MockBilling)
	auditRepo := new(MockAuditRepository)
	svc := newTestService(repo, billing, new(MockPublisher), auditRepo)

	user := &models.User{
		ID:    "user-1",
		Email: "user@example.com",
	}

	repo.On("GetUserByStripeCustomerID", mock.Anything, "cus_123").Return(user, nil).Once()
	billing.On("PriceIDForTier", models.TierPersonal).Return("price_personal").Once()
	repo.On("UpdateMembershipState", mock.Anything, "user-1", mock.MatchedBy(func(state repository.MembershipState) bool {
		return state.Status == models.MembershipActive &&
			state.Tier == models.TierPersonal &&
			state.PriceLocked &&
			state.LockedPriceID != nil && *state.LockedPriceID == "price_personal" &&
			state.LockedPriceAmount != nil && *state.LockedPriceAmount == PersonalPriceCents
	})).Return(nil).Once()
	auditRepo.On("CreateAuditLog", mock.Anything, mock.MatchedBy(func(entry models.CreateAuditLog) bool {
		return entry.Action == models.AuditMembershipCreated
	})).Return("audit-5", nil).Once()

	event := stripeEvent(t, "checkout.session.completed", map[string]any{
		"id":           "cs_123",
		"mode":         "subscription",
		"customer":     "cus_123",
		"subscription": "sub_123",
		"metadata":     map[string]string{"tier": "personal"},
	})

	err := svc.HandleEvent(context.Background(), event)

	assert.NoError(t, err)
	repo.AssertExpectations(t)
	billing.AssertExpectations(t)
}
