// Package notifications реализует HTTP-обработчики уведомлений администраторов.
package notifications

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/a8n-tools/platform/internal/http/response"
	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/models"
)

// Service описывает интерфейс уведомлений администраторов.
type Service interface {
	ListNotifications(ctx context.Context, unreadOnly bool, limit, offset int) ([]*models.AdminNotification, int, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) (int, error)
}

// Handler обрабатывает запросы уведомлений.
type Handler struct {
	log   *slog.Logger
	admin Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, adminService Service) *Handler {
	return &Handler{log: log, admin: adminService}
}

// List godoc
// @Summary Уведомления администраторов
// @Tags Admin
// @Produce  json
// @Param page query int false "Номер страницы"
// @Param page_size query int false "Размер страницы"
// @Param unread query bool false "Только непрочитанные"
// @Success 200 {object} response.Response "Страница уведомлений"
// @Router /admin/notifications [get]
// @Security BearerAuth
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.notifications.List"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	unreadOnly := r.URL.Query().Get("unread") == "true"
	page, pageSize, offset := response.ParsePage(r)

	items, total, err := h.admin.ListNotifications(r.Context(), unreadOnly, pageSize, offset)
	if err != nil {
		log.Error("failed to list notifications", sl.Err(err))
		response.Internal(w, r)
		return
	}

	views := make([]map[string]any, 0, len(items))
	for _, n := range items {
		views = append(views, map[string]any{
			"id":         n.ID,
			"type":       n.Type,
			"title":      n.Title,
			"message":    n.Message,
			"metadata":   n.Metadata,
			"user_id":    n.UserID,
			"is_read":    n.IsRead,
			"created_at": n.CreatedAt,
		})
	}

	response.OK(w, r, response.NewPage(views, total, page, pageSize))
}

// MarkRead godoc
// @Summary Отметить уведомление прочитанным
// @Tags Admin
// @Produce  json
// @Param id path string true "ID уведомления"
// @Success 200 {object} response.Response "Уведомление прочитано"
// @Failure 404 {object} response.Response "Уведомление не найдено"
// @Router /admin/notifications/{id}/read [post]
// @Security BearerAuth
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.notifications.MarkRead"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")

	if err := h.admin.MarkNotificationRead(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.Err(w, r, http.StatusNotFound, response.CodeNotFound, "notification not found")
			return
		}
		log.Error("failed to mark notification", sl.Err(err))
		response.Internal(w, r)
		return
	}

	response.OK(w, r, map[string]any{
		"message": "Notification marked as read",
	})
}

// MarkAllRead godoc
// @Summary Отметить все уведомления прочитанными
// @Tags Admin
// @Produce  json
// @Success 200 {object} response.Response "Количество прочитанных"
// @Router /admin/notifications/read-all [post]
// @Security BearerAuth
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.notifications.MarkAllRead"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	count, err := h.admin.MarkAllNotificationsRead(r.Context())
	if err != nil {
		log.Error("failed to mark notifications", sl.Err(err))
		response.Internal(w, r)
		return
	}

	response.OK(w, r, map[string]any{
		"marked_read": count,
	})
}
