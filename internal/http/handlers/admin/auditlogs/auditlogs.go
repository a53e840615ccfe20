// Package auditlogs реализует HTTP-обработчик просмотра журнала аудита.
package auditlogs

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/a8n-tools/platform/internal/http/response"
	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/models"
)

// Service описывает интерфейс журнала аудита.
type Service interface {
	ListAuditLogs(ctx context.Context, filter models.AuditLogFilter, limit, offset int) ([]*models.AuditLog, int, error)
}

// Handler обрабатывает запрос журнала аудита.
type Handler struct {
	log   *slog.Logger
	admin Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, adminService Service) *Handler {
	return &Handler{log: log, admin: adminService}
}

// ServeHTTP godoc
// @Summary Журнал аудита
// @Tags Admin
// @Produce  json
// @Param page query int false "Номер страницы"
// @Param page_size query int false "Размер страницы"
// @Param actor_id query string false "Фильтр по актору"
// @Param action query string false "Фильтр по действию"
// @Param admin_only query bool false "Только действия администраторов"
// @Success 200 {object} response.Response "Страница записей аудита"
// @Router /admin/audit-logs [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.auditlogs"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	q := r.URL.Query()
	var filter models.AuditLogFilter
	if v := q.Get("actor_id"); v != "" {
		filter.ActorID = &v
	}
	if v := q.Get("action"); v != "" {
		action := models.AuditAction(v)
		filter.Action = &action
	}
	filter.AdminOnly = q.Get("admin_only") == "true"

	page, pageSize, offset := response.ParsePage(r)

	logs, total, err := h.admin.ListAuditLogs(r.Context(), filter, pageSize, offset)
	if err != nil {
		log.Error("failed to list audit logs", sl.Err(err))
		response.Internal(w, r)
		return
	}

	views := make([]map[string]any, 0, len(logs))
	for _, entry := range logs {
		views = append(views, map[string]any{
			"id":              entry.ID,
			"actor_id":        entry.ActorID,
			"actor_email":     entry.ActorEmail,
			"actor_ip":        entry.ActorIP,
			"action":          entry.Action,
			"resource_type":   entry.ResourceType,
			"resource_id":     entry.ResourceID,
			"metadata":        entry.Metadata,
			"is_admin_action": entry.IsAdminAction,
			"severity":        entry.Severity,
			"created_at":      entry.CreatedAt,
		})
	}

	response.OK(w, r, response.NewPage(views, total, page, pageSize))
}
