// Package refresh реализует HTTP-обработчик ротации сессии: refresh-токен
// обменивается на новую пару токенов, старый перестает действовать.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/a8n-tools/platform/internal/http/middlewarectx"
	"github.com/a8n-tools/platform/internal/http/response"
	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/models"
	"github.com/a8n-tools/platform/internal/services/auth"
)

// Service описывает интерфейс бизнес-логики refresh.
type Service interface {
	Refresh(ctx context.Context, refreshToken string) (*models.User, auth.TokenPair, error)
}

// Handler обрабатывает HTTP-запросы refresh.
type Handler struct {
	log     *slog.Logger
	auth    Service
	cookies *middlewarectx.CookieWriter
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, authService Service, cookies *middlewarectx.CookieWriter) *Handler {
	return &Handler{
		log:     log,
		auth:    authService,
		cookies: cookies,
	}
}

// ServeHTTP godoc
// @Summary Ротация сессии
// @Description Обменивает refresh cookie на новую пару токенов.
// @Tags Auth
// @Produce  json
// @Success 200 {object} response.Response "Токен обновлен"
// @Failure 401 {object} response.Response "Refresh токен недействителен"
// @Router /auth/refresh [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.refresh"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	c, err := r.Cookie(middlewarectx.RefreshTokenCookie)
	if err != nil || c.Value == "" {
		response.Err(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "refresh token missing")
		return
	}

	user, pair, err := h.auth.Refresh(r.Context(), c.Value)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			h.cookies.ClearAuthCookies(w)
			response.Err(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "invalid refresh token")
			return
		}
		log.Error("refresh failed", sl.Err(err))
		response.Internal(w, r)
		return
	}

	// Браузер не сообщает, была ли refresh cookie сессионной, поэтому
	// после ротации она выставляется на полный срок серверной сессии.
	h.cookies.SetAuthCookies(w, pair.AccessToken, pair.RefreshToken, true)
	response.OK(w, r, map[string]any{
		"id":                user.ID,
		"email":             user.Email,
		"role":              user.Role,
		"membership_status": user.MembershipStatus,
		"membership_tier":   user.MembershipTier,
	})
}
