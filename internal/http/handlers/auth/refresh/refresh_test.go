package refresh

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/a8n-tools/platform/internal/config"
	"github.com/a8n-tools/platform/internal/http/middlewarectx"
	"github.com/a8n-tools/platform/internal/models"
	"github.com/a8n-tools/platform/internal/services/auth"
)

type AuthServiceMock struct {
	mock.Mock
}

func (m *AuthServiceMock) Refresh(ctx context.Context, refreshToken string) (*models.User, auth.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	user, _ := args.Get(0).(*models.User)
	pair, _ := args.Get(1).(auth.TokenPair)
	return user, pair, args.Error(2)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestRefreshHandler_RotatesBothCookies(t *testing.T) {
	authMock := new(AuthServiceMock)
	handler := New(newNoopLogger(), authMock, middlewarectx.NewCookieWriter(&config.Config{}))

	user := &models.User{
		ID:               "u1",
		Email:            "user@example.com",
		Role:             models.RoleSubscriber,
		MembershipStatus: models.MembershipActive,
	}
	pair := auth.TokenPair{AccessToken: "new-access", RefreshToken: "new-refresh"}
	authMock.On("Refresh", mock.Anything, "old-refresh").Return(user, pair, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: middlewarectx.RefreshTokenCookie, Value: "old-refresh"})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	names := map[string]string{}
	for _, c := range rec.Result().Cookies() {
		names[c.Name] = c.Value
	}
	assert.Equal(t, "new-access", names[middlewarectx.AccessTokenCookie])
	assert.Equal(t, "new-refresh", names[middlewarectx.RefreshTokenCookie])

	authMock.AssertExpectations(t)
}

func TestRefreshHandler_Unauthorized(t *testing.T) {
	tests := []struct {
		name       string
		cookie     *http.Cookie
		setupMocks func(m *AuthServiceMock)
	}{
		{
			name:       "missing cookie",
			setupMocks: func(m *AuthServiceMock) {},
		},
		{
			name:   "invalid token clears cookies",
			cookie: &http.Cookie{Name: middlewarectx.RefreshTokenCookie, Value: "stale"},
			setupMocks: func(m *AuthServiceMock) {
				m.On("Refresh", mock.Anything, "stale").
					Return(nil, auth.TokenPair{}, auth.ErrInvalidToken).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authMock := new(AuthServiceMock)
			tt.setupMocks(authMock)
			handler := New(newNoopLogger(), authMock, middlewarectx.NewCookieWriter(&config.Config{}))

			req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			authMock.AssertExpectations(t)
		})
	}
}
