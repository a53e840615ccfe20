// Package applications реализует HTTP-обработчики управления каталогом из админки.
package applications

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/a8n-tools/platform/internal/http/middlewarectx"
	"github.com/a8n-tools/platform/internal/http/response"
	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/models"
	"github.com/a8n-tools/platform/internal/services/admin"
)

// UpdateRequest частичное обновление приложения. Непереданные поля не меняются.
type UpdateRequest struct {
	IsActive           *bool   `json:"is_active"`
	MaintenanceMode    *bool   `json:"maintenance_mode"`
	MaintenanceMessage *string `json:"maintenance_message"`
	Version            *string `json:"version"`
}

// Catalog инвалидирует публичный кэш каталога после изменения.
type Catalog interface {
	InvalidateCatalog(ctx context.Context)
}

// Service описывает интерфейс управления каталогом.
type Service interface {
	ListApplications(ctx context.Context) ([]*models.Application, error)
	UpdateApplication(ctx context.Context, actor admin.Actor, slug string, upd models.UpdateApplication) (*models.Application, error)
}

// Handler обрабатывает запросы управления каталогом.
type Handler struct {
	log     *slog.Logger
	admin   Service
	catalog Catalog
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, adminService Service, catalog Catalog) *Handler {
	return &Handler{
		log:     log,
		admin:   adminService,
		catalog: catalog,
	}
}

func appView(a *models.Application) map[string]any {
	return map[string]any{
		"id":                  a.ID,
		"name":                a.Name,
		"slug":                a.Slug,
		"display_name":        a.DisplayName,
		"description":         a.Description,
		"is_active":           a.IsActive,
		"maintenance_mode":    a.MaintenanceMode,
		"maintenance_message": a.MaintenanceMessage,
		"container_name":      a.ContainerName,
		"health_check_url":    a.HealthCheckURL,
		"version":             a.Version,
		"source_code_url":     a.SourceCodeURL,
		"updated_at":          a.UpdatedAt,
	}
}

// List godoc
// @Summary Каталог приложений в админке
// @Description Возвращает все приложения со служебными полями, включая неактивные.
// @Tags Admin
// @Produce  json
// @Success 200 {object} response.Response "Список приложений"
// @Router /admin/applications [get]
// @Security BearerAuth
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.applications.List"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	apps, err := h.admin.ListApplications(r.Context())
	if err != nil {
		log.Error("failed to list applications", sl.Err(err))
		response.Internal(w, r)
		return
	}

	views := make([]map[string]any, 0, len(apps))
	for _, a := range apps {
		views = append(views, appView(a))
	}

	response.OK(w, r, map[string]any{
		"applications": views,
	})
}

// Update godoc
// @Summary Обновление приложения
// @Description Частично обновляет приложение и сбрасывает кэш публичного каталога.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param slug path string true "Slug приложения"
// @Param request body UpdateRequest true "Изменяемые поля"
// @Success 200 {object} response.Response "Обновленное приложение"
// @Failure 404 {object} response.Response "Приложение не найдено"
// @Router /admin/applications/{slug} [put]
// @Security BearerAuth
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.applications.Update"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.Err(w, r, http.StatusBadRequest, response.CodeValidationError, "invalid request body")
		return
	}

	slug := chi.URLParam(r, "slug")

	claims, _ := middlewarectx.ClaimsFromContext(r.Context())
	actor := admin.Actor{
		ID:    claims.UserID,
		Email: claims.Email,
		Role:  models.ParseRole(claims.Role),
		IP:    middlewarectx.ClientIP(r),
	}

	app, err := h.admin.UpdateApplication(r.Context(), actor, slug, models.UpdateApplication{
		IsActive:           req.IsActive,
		MaintenanceMode:    req.MaintenanceMode,
		MaintenanceMessage: req.MaintenanceMessage,
		Version:            req.Version,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.Err(w, r, http.StatusNotFound, response.CodeNotFound, "application not found")
			return
		}
		log.Error("failed to update application", sl.Err(err))
		response.Internal(w, r)
		return
	}

	h.catalog.InvalidateCatalog(r.Context())
	log.Info("application updated", slog.String("slug", slug))

	response.OK(w, r, appView(app))
}
