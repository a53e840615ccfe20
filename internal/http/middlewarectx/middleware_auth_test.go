package middlewarectx

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	libjwt "github.com/a8n-tools/platform/internal/lib/jwt"
	"github.com/a8n-tools/platform/internal/models"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func testUser(role models.Role) *models.User {
	return &models.User{
		ID:               "user-1",
		Email:            "user@example.com",
		Role:             role,
		MembershipStatus: models.MembershipActive,
		MembershipTier:   models.TierPersonal,
	}
}

func claimsEcho(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"sub": claims.UserID})
	})
}

func decodeErrCode(t *testing.T, body io.Reader) string {
	t.Helper()
	var got struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&got))
	return got.Error.Code
}

func TestJWTMiddleware(t *testing.T) {
	maker := libjwt.NewJWTMaker("test-secret", 15*time.Minute, "a8n.tools")
	handler := JWTMiddleware(maker, newNoopLogger())(claimsEcho(t))

	t.Run("valid token in cookie", func(t *testing.T) {
		token, err := maker.GenerateToken(testUser(models.RoleSubscriber))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "user-1")
	})

	t.Run("valid token in bearer header", func(t *testing.T) {
		token, err := maker.GenerateToken(testUser(models.RoleSubscriber))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decodeErrCode(t, rec.Body))
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "not-a-jwt"})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decodeErrCode(t, rec.Body))
	})

	t.Run("expired token", func(t *testing.T) {
		expiredMaker := libjwt.NewJWTMaker("test-secret", -time.Minute, "a8n.tools")
		token, err := expiredMaker.GenerateToken(testUser(models.RoleSubscriber))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "TOKEN_EXPIRED", decodeErrCode(t, rec.Body))
	})

	t.Run("token signed with another key", func(t *testing.T) {
		otherMaker := libjwt.NewJWTMaker("other-secret", 15*time.Minute, "a8n.tools")
		token, err := otherMaker.GenerateToken(testUser(models.RoleSubscriber))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestOptionalAuthMiddleware(t *testing.T) {
	maker := libjwt.NewJWTMaker("test-secret", 15*time.Minute, "a8n.tools")

	nextSawClaims := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, nextSawClaims = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := OptionalAuthMiddleware(maker)(next)

	t.Run("anonymous passes through", func(t *testing.T) {
		nextSawClaims = false
		req := httptest.NewRequest(http.MethodGet, "/applications", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, nextSawClaims)
	})

	t.Run("valid token populates claims", func(t *testing.T) {
		nextSawClaims = false
		token, err := maker.GenerateToken(testUser(models.RoleSubscriber))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/applications", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, nextSawClaims)
	})

	t.Run("invalid token treated as anonymous", func(t *testing.T) {
		nextSawClaims = false
		req := httptest.NewRequest(http.MethodGet, "/applications", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "broken"})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, nextSawClaims)
	})
}

func TestMembershipMiddleware(t *testing.T) {
	maker := libjwt.NewJWTMaker("test-secret", 15*time.Minute, "a8n.tools")
	log := newNoopLogger()
	handler := JWTMiddleware(maker, log)(MembershipMiddleware(log)(claimsEcho(t)))

	memberWith := func(status models.MembershipStatus) *models.User {
		u := testUser(models.RoleSubscriber)
		u.MembershipStatus = status
		return u
	}

	t.Run("active allowed", func(t *testing.T) {
		token, err := maker.GenerateToken(memberWith(models.MembershipActive))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/applications/notes/launch", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("grace period allowed", func(t *testing.T) {
		token, err := maker.GenerateToken(memberWith(models.MembershipPastDue))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/applications/notes/launch", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("without membership forbidden", func(t *testing.T) {
		for _, status := range []models.MembershipStatus{
			models.MembershipNone, models.MembershipCanceled, models.MembershipIncomplete,
		} {
			token, err := maker.GenerateToken(memberWith(status))
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/applications/notes/launch", nil)
			req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, "FORBIDDEN", decodeErrCode(t, rec.Body))
		}
	})

	t.Run("no claims in context", func(t *testing.T) {
		bare := MembershipMiddleware(log)(claimsEcho(t))
		req := httptest.NewRequest(http.MethodGet, "/applications/notes/launch", nil)
		rec := httptest.NewRecorder()

		bare.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAdminMiddleware(t *testing.T) {
	maker := libjwt.NewJWTMaker("test-secret", 15*time.Minute, "a8n.tools")
	log := newNoopLogger()
	handler := JWTMiddleware(maker, log)(AdminMiddleware(log)(claimsEcho(t)))

	t.Run("admin allowed", func(t *testing.T) {
		token, err := maker.GenerateToken(testUser(models.RoleAdmin))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("subscriber forbidden", func(t *testing.T) {
		token, err := maker.GenerateToken(testUser(models.RoleSubscriber))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "FORBIDDEN", decodeErrCode(t, rec.Body))
	})

	t.Run("no claims in context", func(t *testing.T) {
		bare := AdminMiddleware(log)(claimsEcho(t))
		req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
		rec := httptest.NewRecorder()

		bare.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
