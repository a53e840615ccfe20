// Package list реализует HTTP-обработчик каталога приложений.
//
// Каталог публичный: без авторизации приложения выдаются как недоступные
// с причиной membership_required.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/a8n-tools/platform/internal/http/middlewarectx"
	"github.com/a8n-tools/platform/internal/http/response"
	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/models"
	"github.com/a8n-tools/platform/internal/services/application"
)

// Service описывает интерфейс каталога приложений.
type Service interface {
	List(ctx context.Context, status models.MembershipStatus) ([]application.View, error)
}

// Handler обрабатывает запрос каталога приложений.
type Handler struct {
	log     *slog.Logger
	catalog Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, catalog Service) *Handler {
	return &Handler{log: log, catalog: catalog}
}

// ServeHTTP godoc
// @Summary Каталог приложений
// @Description Возвращает все приложения каталога с вычисленным признаком доступности для текущего пользователя.
// @Tags Applications
// @Produce  json
// @Success 200 {object} response.Response "Список приложений"
// @Router /applications [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.application.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	status := models.MembershipNone
	if claims, ok := middlewarectx.ClaimsFromContext(r.Context()); ok {
		status = models.ParseMembershipStatus(claims.MembershipStatus)
	}

	apps, err := h.catalog.List(r.Context(), status)
	if err != nil {
		log.Error("failed to load catalog", sl.Err(err))
		response.Internal(w, r)
		return
	}

	response.OK(w, r, map[string]any{
		"applications": apps,
	})
}
