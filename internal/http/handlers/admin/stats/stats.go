// Package stats реализует HTTP-обработчик сводной статистики админки.
package stats

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/a8n-tools/platform/internal/http/response"
	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/services/admin"
)

// Service описывает интерфейс статистики админки.
type Service interface {
	Stats(ctx context.Context) (*admin.Stats, error)
}

// Handler обрабатывает запрос статистики.
type Handler struct {
	log   *slog.Logger
	admin Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, adminService Service) *Handler {
	return &Handler{log: log, admin: adminService}
}

// ServeHTTP godoc
// @Summary Сводная статистика платформы
// @Tags Admin
// @Produce  json
// @Success 200 {object} response.Response "Статистика"
// @Failure 403 {object} response.Response "Требуется роль администратора"
// @Router /admin/stats [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.stats"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		log.Error("failed to load stats", sl.Err(err))
		response.Internal(w, r)
		return
	}

	response.OK(w, r, stats)
}
