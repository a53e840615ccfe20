package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(server.URL)
	require.NoError(t, err)
	return c, server
}

func writeSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]any{"code": code, "message": message},
	})
}

func TestClient_RejectsNonJSONResponse(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>captive portal</html>"))
	}))

	_, err := c.Auth.Me(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindTransport, apiErr.Kind)
	assert.Equal(t, ErrCodeBadContentType, apiErr.Code)
}

func TestClient_UnwrapsEnvelope(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/me", r.URL.Path)
		writeSuccess(w, map[string]any{
			"id":                "user-1",
			"email":             "user@example.com",
			"role":              "subscriber",
			"membership_status": "active",
		})
	}))

	user, err := c.Auth.Me(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "user@example.com", user.Email)
	assert.Equal(t, "active", user.MembershipStatus)
}

func TestClient_MapsServerErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		code     string
		message  string
		wantKind ErrorKind
	}{
		{"validation", http.StatusUnprocessableEntity, "VALIDATION_ERROR", "field Email is a required field", KindValidation},
		{"invalid credentials", http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", KindAuth},
		{"expired token", http.StatusUnauthorized, "TOKEN_EXPIRED", "token expired", KindAuth},
		{"forbidden", http.StatusForbidden, "FORBIDDEN", "admin only", KindForbidden},
		{"not found", http.StatusNotFound, "NOT_FOUND", "not found", KindNotFound},
		{"conflict", http.StatusConflict, "CONFLICT", "Email already registered", KindConflict},
		{"rate limited", http.StatusTooManyRequests, "RATE_LIMITED", "slow down", KindRateLimited},
		{"internal", http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", KindServer},
		{"unknown code", http.StatusBadGateway, "SOMETHING_NEW", "unknown", KindServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeError(w, tt.status, tt.code, tt.message)
			}))

			_, err := c.Auth.Me(context.Background())

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantKind, apiErr.Kind)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Equal(t, tt.status, apiErr.Status)
		})
	}
}

func TestClient_SendsBearerTokenWhenSet(t *testing.T) {
	var gotAuth string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeSuccess(w, map[string]any{"id": "user-1"})
	}))

	c.SetAccessToken("impersonation-token")

	_, err := c.Auth.Me(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "Bearer impersonation-token", gotAuth)
}

func TestClient_BaseURLGetsVersionPrefix(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeSuccess(w, nil)
	}))
	t.Cleanup(server.Close)

	c, err := New(server.URL + "/")
	require.NoError(t, err)

	_ = c.Auth.Logout(context.Background())

	assert.Equal(t, "/v1/auth/logout", gotPath)
}
