// Package portal реализует HTTP-обработчик перехода в Stripe Billing Portal.
package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/a8n-tools/platform/internal/http/middlewarectx"
	"github.com/a8n-tools/platform/internal/http/response"
	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/services/membership"
)

// Service описывает интерфейс бизнес-логики подписок.
type Service interface {
	BillingPortal(ctx context.Context, userID string) (string, error)
}

// Handler обрабатывает создание сессии биллинг-портала.
type Handler struct {
	log        *slog.Logger
	membership Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, membershipService Service) *Handler {
	return &Handler{log: log, membership: membershipService}
}

// ServeHTTP godoc
// @Summary Ссылка на биллинг-портал
// @Description Возвращает URL сессии Stripe Billing Portal для управления платежными данными.
// @Tags Membership
// @Produce  json
// @Success 200 {object} response.Response "URL портала"
// @Failure 401 {object} response.Response "Не авторизован"
// @Failure 404 {object} response.Response "Платежный профиль не найден"
// @Router /membership/portal [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.membership.portal"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	claims, ok := middlewarectx.ClaimsFromContext(r.Context())
	if !ok {
		response.Err(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		return
	}

	url, err := h.membership.BillingPortal(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, membership.ErrNoMembership) {
			response.Err(w, r, http.StatusNotFound, response.CodeNotFound, "No billing profile")
			return
		}
		log.Error("billing portal failed", sl.Err(err))
		response.Internal(w, r)
		return
	}

	response.OK(w, r, map[string]any{
		"portal_url": url,
	})
}
