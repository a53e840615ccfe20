// Package launch реализует HTTP-обработчик запуска приложения: проверяет
// право доступа и перенаправляет на поддомен приложения. Маршрут закрыт
// membership-гейтом, обработчик дополнительно учитывает флаги приложения.
package launch

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

// Handler обрабатывает запуск приложения.
type Handler struct {
	log     *slog.Logger
	catalog Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, catalog Service) *Handler {
	return &Handler{log: log, catalog: catalog}
}

// ServeHTTP godoc
// @Summary Запуск приложения
// @Description Перенаправляет на поддомен приложения, если доступ разрешен.
// @Tags Applications
// @Produce  json
// @Param slug path string true "Slug приложения"
// @Success 302 "Перенаправление на приложение"
// @Failure 403 {object} response.Response "Доступ запрещен"
// @Failure 404 {object} response.Response "Приложение не найдено"
// @Router /applications/{slug}/launch [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.application.launch"

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

	if !app.IsAccessible {
		response.Err(w, r, http.StatusForbidden, response.CodeForbidden, app.AccessReason)
		return
	}

	http.Redirect(w, r, app.LaunchURL, http.StatusFound)
}
