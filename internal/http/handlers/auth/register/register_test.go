package register

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
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

func (m *AuthServiceMock) Register(ctx context.Context, email, rawPassword string, meta auth.SessionMeta) (*models.User, auth.TokenPair, error) {
	args := m.Called(ctx, email, rawPassword, meta)
	user, _ := args.Get(0).(*models.User)
	pair, _ := args.Get(1).(auth.TokenPair)
	return user, pair, args.Error(2)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestRegisterHandler_ServeHTTP(t *testing.T) {
	authMock := new(AuthServiceMock)
	logger := newNoopLogger()
	cookies := middlewarectx.NewCookieWriter(&config.Config{})

	handler := New(logger, authMock, cookies)

	user := &models.User{
		ID:               "4a3b9a1e-0c2f-4a1d-8e55-b1f6dcb69f1c",
		Email:            "new@example.com",
		Role:             models.RoleSubscriber,
		MembershipStatus: models.MembershipNone,
	}
	pair := auth.TokenPair{AccessToken: "access", RefreshToken: "refresh"}

	tests := []struct {
		name           string
		requestBody    interface{}
		mockUser       *models.User
		mockErr        error
		wantStatusCode int
		wantData       map[string]any
		wantErrCode    string
		wantErrMessage string
	}{
		{
			name:           "valid registration",
			requestBody:    Request{Email: "new@example.com", Password: "long enough password"},
			mockUser:       user,
			mockErr:        nil,
			wantStatusCode: http.StatusCreated,
			wantData: map[string]any{
				"id":                user.ID,
				"email":             user.Email,
				"role":              string(models.RoleSubscriber),
				"membership_status": string(models.MembershipNone),
			},
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			wantStatusCode: http.StatusBadRequest,
			wantErrCode:    "VALIDATION_ERROR",
			wantErrMessage: "invalid request body",
		},
		{
			name:           "validation error - short password",
			requestBody:    Request{Email: "new@example.com", Password: "short"},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantErrCode:    "VALIDATION_ERROR",
			wantErrMessage: "field Password is too short",
		},
		{
			name:           "email already registered",
			requestBody:    Request{Email: "taken@example.com", Password: "long enough password"},
			mockUser:       nil,
			mockErr:        auth.ErrEmailTaken,
			wantStatusCode: http.StatusConflict,
			wantErrCode:    "CONFLICT",
			wantErrMessage: "Email already registered",
		},
		{
			name:           "service failure",
			requestBody:    Request{Email: "new@example.com", Password: "long enough password"},
			mockUser:       nil,
			mockErr:        assert.AnError,
			wantStatusCode: http.StatusInternalServerError,
			wantErrCode:    "INTERNAL_ERROR",
			wantErrMessage: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authMock.ExpectedCalls = nil
			authMock.Calls = nil

			if tt.mockUser != nil || tt.mockErr != nil {
				req := tt.requestBody.(Request)
				authMock.On("Register", mock.Anything, req.Email, req.Password, mock.Anything).
					Return(tt.mockUser, pair, tt.mockErr).Once()
			}

			var bodyBytes []byte
			var err error
			switch v := tt.requestBody.(type) {
			case string:
				bodyBytes = []byte(v)
			default:
				bodyBytes, err = json.Marshal(tt.requestBody)
				if err != nil {
					t.Fatal(err)
				}
			}

			req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(bodyBytes))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))

			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var got map[string]any
			err = json.NewDecoder(rec.Body).Decode(&got)
			assert.NoError(t, err)

			if tt.wantErrCode != "" {
				assert.Equal(t, false, got["success"])
				errObj, ok := got["error"].(map[string]any)
				assert.True(t, ok)
				assert.Equal(t, tt.wantErrCode, errObj["code"])
				assert.Equal(t, tt.wantErrMessage, errObj["message"])
			} else {
				assert.Equal(t, true, got["success"])
				assert.Nil(t, got["error"])
			}

			if tt.wantData != nil {
				data, ok := got["data"].(map[string]any)
				assert.True(t, ok)
				for k, v := range tt.wantData {
					assert.Equal(t, v, data[k])
				}
			}

			if tt.mockUser != nil || tt.mockErr != nil {
				authMock.AssertExpectations(t)
			}
		})
	}
}
