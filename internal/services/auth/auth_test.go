package auth

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/a8n-tools/platform/internal/config"
	"github.com/a8n-tools/platform/internal/lib/jwt"
	"github.com/a8n-tools/platform/internal/lib/token"
	"github.com/a8n-tools/platform/internal/models"
	"github.com/a8n-tools/platform/internal/services/audit"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateUser(ctx context.Context, user models.CreateUser) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *MockRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockRepository) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

func (m *MockRepository) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	args := m.Called(ctx, userID, passwordHash)
	return args.Error(0)
}

func (m *MockRepository) SetEmailVerified(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockRepository) CreateRefreshToken(ctx context.Context, t models.CreateRefreshToken) (string, error) {
	args := m.Called(ctx, t)
	return args.String(0), args.Error(1)
}

func (m *MockRepository) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	t, _ := args.Get(0).(*models.RefreshToken)
	return t, args.Error(1)
}

func (m *MockRepository) RotateRefreshToken(ctx context.Context, id, tokenHash string, expiresAt, usedAt time.Time) (int, error) {
	args := m.Called(ctx, id, tokenHash, expiresAt, usedAt)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) RevokeRefreshToken(ctx context.Context, tokenHash string) (int, error) {
	args := m.Called(ctx, tokenHash)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) RevokeRefreshTokenByID(ctx context.Context, id, userID string) (int, error) {
	args := m.Called(ctx, id, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) RevokeAllRefreshTokens(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) ListSessions(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RefreshToken), args.Error(1)
}

func (m *MockRepository) CreateOneTimeToken(ctx context.Context, email, tokenHash string, purpose models.TokenPurpose, expiresAt time.Time) (string, error) {
	args := m.Called(ctx, email, tokenHash, purpose, expiresAt)
	return args.String(0), args.Error(1)
}

func (m *MockRepository) ConsumeOneTimeToken(ctx context.Context, tokenHash string, purpose models.TokenPurpose) (*models.OneTimeToken, error) {
	args := m.Called(ctx, tokenHash, purpose)
	t, _ := args.Get(0).(*models.OneTimeToken)
	return t, args.Error(1)
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

func newTestService(repo *MockRepository, pub *MockPublisher, auditRepo *MockAuditRepository) *Service {
	log := newNoopLogger()
	cfg := &config.Config{}
	cfg.App.BaseURL = "https://a8n.tools"
	cfg.JWTToken.RefreshTTL = 30 * 24 * time.Hour
	maker := jwt.NewJWTMaker("test-secret-key", time.Minute, "platform")
	return NewService(repo, maker, pub, audit.NewService(auditRepo, log), log, cfg)
}

func TestService_Refresh_RotatesToken(t *testing.T) {
	repo := &MockRepository{}
	pub := &MockPublisher{}
	auditRepo := &MockAuditRepository{}
	svc := newTestService(repo, pub, auditRepo)

	user := &models.User{
		ID:               "user-1",
		Email:            "user@example.com",
		Role:             models.RoleSubscriber,
		MembershipStatus: models.MembershipActive,
	}
	oldToken := "old-refresh-token"
	session := &models.RefreshToken{
		ID:        "session-1",
		UserID:    user.ID,
		TokenHash: token.Hash(oldToken),
	}

	var rotatedHash string
	repo.On("GetRefreshTokenByHash", mock.Anything, token.Hash(oldToken)).Return(session, nil)
	repo.On("GetUser", mock.Anything, user.ID).Return(user, nil)
	repo.On("RotateRefreshToken", mock.Anything, session.ID, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			rotatedHash = args.String(2)
		}).
		Return(1, nil)

	got, pair, err := svc.Refresh(context.Background(), oldToken)

	require.NoError(t, err)
	assert.Equal(t, user, got)
	assert.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, oldToken, pair.RefreshToken)
	assert.Equal(t, token.Hash(pair.RefreshToken), rotatedHash)
	repo.AssertExpectations(t)
}

func TestService_Refresh_InvalidToken(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(repo *MockRepository)
	}{
		{
			name: "unknown token",
			setupMocks: func(repo *MockRepository) {
				repo.On("GetRefreshTokenByHash", mock.Anything, mock.Anything).Return(nil, sql.ErrNoRows)
			},
		},
		{
			name: "deleted user",
			setupMocks: func(repo *MockRepository) {
				now := time.Now().UTC()
				repo.On("GetRefreshTokenByHash", mock.Anything, mock.Anything).
					Return(&models.RefreshToken{ID: "session-1", UserID: "user-1"}, nil)
				repo.On("GetUser", mock.Anything, "user-1").
					Return(&models.User{ID: "user-1", DeletedAt: &now}, nil)
			},
		},
		{
			name: "session revoked during rotation",
			setupMocks: func(repo *MockRepository) {
				repo.On("GetRefreshTokenByHash", mock.Anything, mock.Anything).
					Return(&models.RefreshToken{ID: "session-1", UserID: "user-1"}, nil)
				repo.On("GetUser", mock.Anything, "user-1").
					Return(&models.User{ID: "user-1", Email: "user@example.com"}, nil)
				repo.On("RotateRefreshToken", mock.Anything, "session-1", mock.Anything, mock.Anything, mock.Anything).
					Return(0, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockRepository{}
			tt.setupMocks(repo)
			svc := newTestService(repo, &MockPublisher{}, &MockAuditRepository{})

			_, _, err := svc.Refresh(context.Background(), "some-refresh-token")

			assert.ErrorIs(t, err, ErrInvalidToken)
			repo.AssertExpectations(t)
		})
	}
}
