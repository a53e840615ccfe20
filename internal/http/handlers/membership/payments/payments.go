// Package payments реализует HTTP-обработчик истории платежей пользователя.
package payments

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
	Payments(ctx context.Context, userID string, limit, offset int) ([]*models.Payment, int, error)
}

// Handler обрабатывает запрос истории платежей.
type Handler struct {
	log        *slog.Logger
	membership Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, membershipService Service) *Handler {
	return &Handler{log: log, membership: membershipService}
}

// ServeHTTP godoc
// @Summary История платежей
// @Tags Membership
// @Produce  json
// @Param page query int false "Номер страницы"
// @Param page_size query int false "Размер страницы"
// @Success 200 {object} response.Response "Страница платежей"
// @Failure 401 {object} response.Response "Не авторизован"
// @Router /membership/payments [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.membership.payments"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	claims, ok := middlewarectx.ClaimsFromContext(r.Context())
	if !ok {
		response.Err(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		return
	}

	page, pageSize, offset := response.ParsePage(r)

	items, total, err := h.membership.Payments(r.Context(), claims.UserID, pageSize, offset)
	if err != nil {
		log.Error("failed to list payments", sl.Err(err))
		response.Internal(w, r)
		return
	}

	views := make([]map[string]any, 0, len(items))
	for _, p := range items {
		views = append(views, map[string]any{
			"id":             p.ID,
			"amount":         p.Amount,
			"currency":       p.Currency,
			"status":         p.Status,
			"failure_reason": p.FailureReason,
			"created_at":     p.CreatedAt,
		})
	}

	response.OK(w, r, response.NewPage(views, total, page, pageSize))
}
