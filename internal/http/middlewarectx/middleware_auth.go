// Package middlewarectx содержит HTTP middleware платформы: проверку
// access токена (cookie или заголовок Authorization), админский и
// membership-гейты, ограничение частоты запросов, security-заголовки
// и метрики.
package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/a8n-tools/platform/internal/http/response"
	libjwt "github.com/a8n-tools/platform/internal/lib/jwt"
	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// Claims ключ claims аутентифицированного пользователя в контексте.
const Claims Key = "claims"

// AccessTokenCookie имя cookie с access токеном.
const AccessTokenCookie = "access_token"

// RefreshTokenCookie имя cookie с refresh токеном.
const RefreshTokenCookie = "refresh_token"

// ClaimsFromContext возвращает claims из контекста запроса.
func ClaimsFromContext(ctx context.Context) (*libjwt.CustomClaims, bool) {
	claims, ok := ctx.Value(Claims).(*libjwt.CustomClaims)
	return claims, ok
}

// extractToken достает access токен: сначала cookie, потом Bearer.
func extractToken(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// JWTMiddleware проверяет access токен и кладет claims в контекст.
// Истекший токен дает отдельный код ошибки: клиент по нему понимает,
// что пора делать refresh.
func JWTMiddleware(maker libjwt.Maker, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"

			tokenStr := extractToken(r)
			if tokenStr == "" {
				response.Err(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
				return
			}

			claims, err := maker.ParseToken(tokenStr)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					response.Err(w, r, http.StatusUnauthorized, response.CodeTokenExpired, "access token expired")
					return
				}
				log.Warn("invalid access token", slog.String("op", op), sl.Err(err))
				response.Err(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "invalid access token")
				return
			}

			ctx := context.WithValue(r.Context(), Claims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware кладет claims в контекст, если токен есть и
// валиден, но не требует аутентификации. Используется каталогом:
// анонимный пользователь видит список приложений без доступа.
func OptionalAuthMiddleware(maker libjwt.Maker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenStr := extractToken(r); tokenStr != "" {
				if claims, err := maker.ParseToken(tokenStr); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), Claims, claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MembershipMiddleware пропускает только пользователей с действующим
// membership по срезу состояния в claims: active и past_due (grace-период)
// дают доступ. Ставится после JWTMiddleware.
func MembershipMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				response.Err(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
				return
			}
			if !models.MembershipStatus(claims.MembershipStatus).HasAccess() {
				log.Warn("membership access denied",
					slog.String("user_id", claims.UserID),
					slog.String("membership_status", claims.MembershipStatus),
				)
				response.Err(w, r, http.StatusForbidden, response.CodeForbidden, "active membership required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminMiddleware пропускает только администраторов. Ставится после
// JWTMiddleware.
func AdminMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				response.Err(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
				return
			}
			if models.ParseRole(claims.Role) != models.RoleAdmin {
				log.Warn("admin access denied", slog.String("user_id", claims.UserID))
				response.Err(w, r, http.StatusForbidden, response.CodeForbidden, "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
