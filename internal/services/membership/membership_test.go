package membership

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/a8n-tools/platform/internal/models"
)

func TestService_Checkout(t *testing.T) {
	customerID := "cus_123"
	user := &models.User{
		ID:               "user-1",
		Email:            "user@example.com",
		StripeCustomerID: &customerID,
		MembershipStatus: models.MembershipNone,
	}

	tests := []struct {
		name       string
		tier       models.MembershipTier
		setupMocks func(*MockRepository, *MockBilling)
		wantURL    string
		wantErr    error
	}{
		{
			name: "creates checkout session",
			tier: models.TierPersonal,
			setupMocks: func(r *MockRepository, b *MockBilling) {
				r.On("GetUser", mock.Anything, "user-1").Return(user, nil).Once()
				b.On("CreateCheckoutSession", customerID, "user-1", models.TierPersonal).
					Return("https://checkout.stripe.com/c/pay_123", nil).Once()
			},
			wantURL: "https://checkout.stripe.com/c/pay_123",
		},
		{
			name: "creates customer when missing",
			tier: models.TierPersonal,
			setupMocks: func(r *MockRepository, b *MockBilling) {
				noCustomer := *user
				noCustomer.StripeCustomerID = nil
				r.On("GetUser", mock.Anything, "user-1").Return(&noCustomer, nil).Once()
				b.On("CreateCustomer", "user@example.com", "user-1").Return("cus_new", nil).Once()
				r.On("SetStripeCustomerID", mock.Anything, "user-1", "cus_new").Return(nil).Once()
				b.On("CreateCheckoutSession", "cus_new", "user-1", models.TierPersonal).
					Return("https://checkout.stripe.com/c/pay_456", nil).Once()
			},
			wantURL: "https://checkout.stripe.com/c/pay_456",
		},
		{
			name: "already active",
			tier: models.TierPersonal,
			setupMocks: func(r *MockRepository, _ *MockBilling) {
				active := *user
				active.MembershipStatus = models.MembershipActive
				r.On("GetUser", mock.Anything, "user-1").Return(&active, nil).Once()
			},
			wantErr: ErrAlreadyActive,
		},
		{
			name:       "business tier disabled",
			tier:       models.TierBusiness,
			setupMocks: func(_ *MockRepository, _ *MockBilling) {},
			wantErr:    ErrTierUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			billing := new(MockBilling)
			svc := newTestService(repo, billing, new(MockPublisher), new(MockAuditRepository))

			tt.setupMocks(repo, billing)

			url, err := svc.Checkout(context.Background(), "user-1", tt.tier)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantURL, url)
			}
			repo.AssertExpectations(t)
			billing.AssertExpectations(t)
		})
	}
}

func TestService_Cancel(t *testing.T) {
	user := &models.User{ID: "user-1", Email: "user@example.com", Role: models.RoleSubscriber}
	membership := &models.Membership{ID: "m-1", UserID: "user-1", StripeSubscriptionID: "sub_123"}

	t.Run("cancels at period end", func(t *testing.T) {
		repo := new(MockRepository)
		billing := new(MockBilling)
		auditRepo := new(MockAuditRepository)
		svc := newTestService(repo, billing, new(MockPublisher), auditRepo)

		repo.On("GetUser", mock.Anything, "user-1").Return(user, nil).Once()
		repo.On("GetMembershipByUserID", mock.Anything, "user-1").Return(membership, nil).Once()
		billing.On("CancelSubscription", "sub_123").Return(nil).Once()
		repo.On("SetCancelAtPeriodEnd", mock.Anything, "sub_123", true).Return(nil).Once()
		auditRepo.On("CreateAuditLog", mock.Anything, mock.Anything).Return("audit-1", nil).Once()

		err := svc.Cancel(context.Background(), "user-1", "10.0.0.1")

		assert.NoError(t, err)
		repo.AssertExpectations(t)
		billing.AssertExpectations(t)
	})

	t.Run("no membership", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newTestService(repo, new(MockBilling), new(MockPublisher), new(MockAuditRepository))

		repo.On("GetUser", mock.Anything, "user-1").Return(user, nil).Once()
		repo.On("GetMembershipByUserID", mock.Anything, "user-1").Return(nil, sql.ErrNoRows).Once()

		err := svc.Cancel(context.Background(), "user-1", "10.0.0.1")

		assert.ErrorIs(t, err, ErrNoMembership)
	})
}

func TestService_CancelImmediately(t *testing.T) {
	user := &models.User{
		ID:             "user-1",
		Email:          "user@example.com",
		Role:           models.RoleSubscriber,
		MembershipTier: models.TierPersonal,
	}
	membership := &models.Membership{ID: "m-1", UserID: "user-1", StripeSubscriptionID: "sub_123"}

	repo := new(MockRepository)
	billing := new(MockBilling)
	auditRepo := new(MockAuditRepository)
	svc := newTestService(repo, billing, new(MockPublisher), auditRepo)

	repo.On("GetUser", mock.Anything, "user-1").Return(user, nil).Once()
	repo.On("GetMembershipByUserID", mock.Anything, "user-1").Return(membership, nil).Once()
	billing.On("CancelSubscriptionNow", "sub_123").Return(nil).Once()
	repo.On("MarkMembershipCanceled", mock.Anything, "sub_123", mock.Anything).Return(nil).Once()
	repo.On("UpdateMembershipState", mock.Anything, "user-1", mock.Anything).Return(nil).Once()
	auditRepo.On("CreateAuditLog", mock.Anything, mock.MatchedBy(func(entry models.CreateAuditLog) bool {
		return entry.Action == models.AuditMembershipCanceled && entry.Severity == models.SeverityWarning
	})).Return("audit-2", nil).Once()

	err := svc.CancelImmediately(context.Background(), "user-1", "10.0.0.1")

	assert.NoError(t, err)
	repo.AssertExpectations(t)
	billing.AssertExpectations(t)
	auditRepo.AssertExpectations(t)
}

func TestService_Reactivate(t *testing.T) {
	user := &models.User{ID: "user-1", Email: "user@example.com", Role: models.RoleSubscriber}

	t.Run("clears pending cancellation", func(t *testing.T) {
		repo := new(MockRepository)
		billing := new(MockBilling)
		auditRepo := new(MockAuditRepository)
		svc := newTestService(repo, billing, new(MockPublisher), auditRepo)

		m := &models.Membership{ID: "m-1", StripeSubscriptionID: "sub_123", CancelAtPeriodEnd: true}
		repo.On("GetUser", mock.Anything, "user-1").Return(user, nil).Once()
		repo.On("GetMembershipByUserID", mock.Anything, "user-1").Return(m, nil).Once()
		billing.On("ReactivateSubscription", "sub_123").Return(nil).Once()
		repo.On("SetCancelAtPeriodEnd", mock.Anything, "sub_123", false).Return(nil).Once()
		auditRepo.On("CreateAuditLog", mock.Anything, mock.Anything).Return("audit-3", nil).Once()

		err := svc.Reactivate(context.Background(), "user-1", "10.0.0.1")

		assert.NoError(t, err)
		repo.AssertExpectations(t)
		billing.AssertExpectations(t)
	})

	t.Run("nothing to reactivate", func(t *testing.T) {
		repo := new(MockRepository)
		billing := new(MockBilling)
		svc := newTestService(repo, billing, new(MockPublisher), new(MockAuditRepository))

		m := &models.Membership{ID: "m-1", StripeSubscriptionID: "sub_123", CancelAtPeriodEnd: false}
		repo.On("GetUser", mock.Anything, "user-1").Return(user, nil).Once()
		repo.On("GetMembershipByUserID", mock.Anything, "user-1").Return(m, nil).Once()

		err := svc.Reactivate(context.Background(), "user-1", "10.0.0.1")

		assert.ErrorIs(t, err, ErrNotCanceling)
		billing.AssertNotCalled(t, "ReactivateSubscription", mock.Anything)
	})
}

func TestService_BillingPortal(t *testing.T) {
	t.Run("no billing profile", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newTestService(repo, new(MockBilling), new(MockPublisher), new(MockAuditRepository))

		repo.On("GetUser", mock.Anything, "user-1").
			Return(&models.User{ID: "user-1"}, nil).Once()

		_, err := svc.BillingPortal(context.Background(), "user-1")

		assert.ErrorIs(t, err, ErrNoMembership)
	})

	t.Run("returns portal url", func(t *testing.T) {
		repo := new(MockRepository)
		billing := new(MockBilling)
		svc := newTestService(repo, billing, new(MockPublisher), new(MockAuditRepository))

		customerID := "cus_123"
		repo.On("GetUser", mock.Anything, "user-1").
			Return(&models.User{ID: "user-1", StripeCustomerID: &customerID}, nil).Once()
		billing.On("BillingPortalURL", customerID, "https://a8n.tools").
			Return("https://billing.stripe.com/p/session_123", nil).Once()

		url, err := svc.BillingPortal(context.Background(), "user-1")

		assert.NoError(t, err)
		assert.Equal(t, "https://billing.stripe.com/p/session_123", url)
	})
}
