// Package current реализует HTTP-обработчик текущего состояния подписки.
package current

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/a8n-tools/platform/internal/http/middlewarectx"
	"github.com/a8n-tools/platform/internal/http/response"
	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/models"
)

// Service описывает интерфейс бизнес-логики подписок.
type Service interface {
	Current(ctx context.Context, userID string) (*models.MembershipInfo, error)
}

// Handler обрабатывает запрос состояния подписки.
type Handler struct {
	log        *slog.Logger
	membership Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, membershipService Service) *Handler {
	return &Handler{log: log, membership: membershipService}
}

// ServeHTTP godoc
// @Summary Текущее состояние подписки
// @Tags Membership
// @Produce  json
// @Success 200 {object} response.Response "Состояние подписки"
// @Failure 401 {object} response.Response "Не авторизован"
// @Router /membership [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.membership.current"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	claims, ok := middlewarectx.ClaimsFromContext(r.Context())
	if !ok {
		response.Err(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		return
	}

	info, err := h.membership.Current(r.Context(), claims.UserID)
	if err != nil {
		log.Error("failed to load membership", sl.Err(err))
		response.Internal(w, r)
		return
	}

	response.OK(w, r, info)
}
