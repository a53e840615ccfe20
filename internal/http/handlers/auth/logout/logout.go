// Package logout реализует HTTP-обработчики выхода: закрытие текущей
// сессии и отзыв всех сессий пользователя. Cookies очищаются при любом
// исходе операции на сервере.
package logout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/a8n-tools/platform/internal/http/middlewarectx"
	"github.com/a8n-tools/platform/internal/http/response"
	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/models"
	"github.com/a8n-tools/platform/internal/services/auth"
)

// Service описывает интерфейс бизнес-логики выхода.
type Service interface {
	Logout(ctx context.Context, refreshToken string, actor *models.User, meta auth.SessionMeta) error
	LogoutAll(ctx context.Context, userID string) (int, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

// Handler обрабатывает HTTP-запросы выхода.
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
// @Summary Выход пользователя
// @Description Отзывает текущую сессию и очищает cookies.
// @Tags Auth
// @Produce  json
// @Success 200 {object} response.Response "Сессия закрыта"
// @Router /auth/logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	// Cookies очищаются в любом случае, даже если отзыв на сервере
	// не удался: локальный выход не должен зависеть от сервера.
	defer h.cookies.ClearAuthCookies(w)

	var actor *models.User
	if claims, ok := middlewarectx.ClaimsFromContext(r.Context()); ok {
		if u, err := h.auth.GetUser(r.Context(), claims.UserID); err == nil {
			actor = u
		}
	}

	if c, err := r.Cookie(middlewarectx.RefreshTokenCookie); err == nil && c.Value != "" {
		if err := h.auth.Logout(r.Context(), c.Value, actor, auth.SessionMeta{IP: middlewarectx.ClientIP(r)}); err != nil {
			log.Warn("failed to revoke session", sl.Err(err))
		}
	}

	response.OK(w, r, map[string]any{"logged_out": true})
}

// AllHandler отзывает все сессии пользователя.
type AllHandler struct {
	log     *slog.Logger
	auth    Service
	cookies *middlewarectx.CookieWriter
}

// NewAll создает обработчик отзыва всех сессий.
func NewAll(log *slog.Logger, authService Service, cookies *middlewarectx.CookieWriter) *AllHandler {
	return &AllHandler{
		log:     log,
		auth:    authService,
		cookies: cookies,
	}
}

// ServeHTTP godoc
// @Summary Выход со всех устройств
// @Description Отзывает все сессии пользователя и очищает cookies.
// @Tags Auth
// @Produce  json
// @Success 200 {object} response.Response "Сессии закрыты"
// @Failure 401 {object} response.Response "Не аутентифицирован"
// @Router /auth/logout-all [post]
func (h *AllHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logoutall"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	claims, ok := middlewarectx.ClaimsFromContext(r.Context())
	if !ok {
		response.Err(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		return
	}

	revoked, err := h.auth.LogoutAll(r.Context(), claims.UserID)
	if err != nil {
		log.Error("failed to revoke sessions", sl.Err(err))
		response.Internal(w, r)
		return
	}

	h.cookies.ClearAuthCookies(w)
	log.Info("all sessions revoked", slog.String("user_id", claims.UserID), slog.Int("count", revoked))
	response.OK(w, r, map[string]any{"revoked_sessions": revoked})
}
