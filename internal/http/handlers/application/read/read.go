// Package read реализует HTTP-обработчик одного приложения каталога по slug.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/a8n-tools/platform/internal/http/middlewarectx"
	"github.com/a8n-tools/platform/internal/http/response"
	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/models"
	"github.com/a8n-tools/platform/internal/services/application"
)

// Service описывает интерфейс каталога приложений.
type Service interface {
	Get(ctx context.Context, slug string, status models.MembershipStatus) (*application.View, error)
}

// Handler обрабатывает запрос одного приложения по slug.
type Handler struct {
	log     *slog.Logger
	catalog Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, catalog Service) *Handler {
	return &Handler{log: log, catalog: catalog}
}

// ServeHTTP godoc
// @Summary Приложение каталога по slug
// @Tags Applications
// @Produce  json
// @Param slug path string true "Slug приложения"
// @Success 200 {object} response.Response "Данные приложения"
// @Failure 404 {object} response.Response "Приложение не найдено"
// @Router /applications/{slug} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.application.read"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	slug := chi.URLParam(r, "slug")
	if slug == "" {
		response.Err(w, r, http.StatusBadRequest, response.CodeValidationError, "slug is required")
		return
	}

	status := models.MembershipNone
	if claims, ok := middlewarectx.ClaimsFromContext(r.Context()); ok {
		status = models.ParseMembershipStatus(claims.MembershipStatus)
	}

	app, err := h.catalog.Get(r.Context(), slug, status)
	if err != nil {
		if errors.Is(err, application.ErrNotFound) {
			response.Err(w, r, http.StatusNotFound, response.CodeNotFound, "application not found")
			return
		}
		log.Error("failed to load application", sl.Err(err))
		response.Internal(w, r)
		return
	}

	response.OK(w, r, app)
}
