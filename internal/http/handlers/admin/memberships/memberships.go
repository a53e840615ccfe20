// Package memberships реализует HTTP-обработчики управления подписками из админки.
package memberships

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/a8n-tools/platform/internal/http/middlewarectx"
	"github.com/a8n-tools/platform/internal/http/response"
	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/models"
	"github.com/a8n-tools/platform/internal/services/admin"
)

// GrantRequest структура входных данных для ручной выдачи подписки.
type GrantRequest struct {
	Tier string `json:"tier" validate:"required,oneof=personal business"`
}

// Service описывает интерфейс управления подписками.
type Service interface {
	ListMemberships(ctx context.Context, limit, offset int) ([]*models.Membership, int, error)
	GrantMembership(ctx context.Context, actor admin.Actor, userID string, tier models.MembershipTier) error
	RevokeMembership(ctx context.Context, actor admin.Actor, userID string) error
}

// Handler обрабатывает запросы управления подписками.
type Handler struct {
	log      *slog.Logger
	admin    Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, adminService Service) *Handler {
	return &Handler{
		log:      log,
		admin:    adminService,
		validate: validator.New(),
	}
}

func actorFrom(r *http.Request) admin.Actor {
	claims, _ := middlewarectx.ClaimsFromContext(r.Context())
	return admin.Actor{
		ID:    claims.UserID,
		Email: claims.Email,
		Role:  models.ParseRole(claims.Role),
		IP:    middlewarectx.ClientIP(r),
	}
}

// List godoc
// @Summary Список подписок
// @Tags Admin
// @Produce  json
// @Param page query int false "Номер страницы"
// @Param page_size query int false "Размер страницы"
// @Success 200 {object} response.Response "Страница подписок"
// @Router /admin/memberships [get]
// @Security BearerAuth
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.memberships.List"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	page, pageSize, offset := response.ParsePage(r)

	items, total, err := h.admin.ListMemberships(r.Context(), pageSize, offset)
	if err != nil {
		log.Error("failed to list memberships", sl.Err(err))
		response.Internal(w, r)
		return
	}

	views := make([]map[string]any, 0, len(items))
	for _, m := range items {
		views = append(views, map[string]any{
			"id":                   m.ID,
			"user_id":              m.UserID,
			"status":               m.Status,
			"current_period_end":   m.CurrentPeriodEnd,
			"cancel_at_period_end": m.CancelAtPeriodEnd,
			"canceled_at":          m.CanceledAt,
			"amount":               m.Amount,
			"currency":             m.Currency,
			"created_at":           m.CreatedAt,
		})
	}

	response.OK(w, r, response.NewPage(views, total, page, pageSize))
}

// Grant godoc
// @Summary Ручная выдача подписки
// @Description Выставляет пользователю активный статус без оплаты через Stripe.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param id path string true "ID пользователя"
// @Param request body GrantRequest true "Тариф"
// @Success 200 {object} response.Response "Подписка выдана"
// @Failure 404 {object} response.Response "Пользователь не найден"
// @Router /admin/users/{id}/membership [post]
// @Security BearerAuth
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.memberships.Grant"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.Err(w, r, http.StatusBadRequest, response.CodeValidationError, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		response.ValidationError(w, r, err.(validator.ValidationErrors))
		return
	}

	userID := chi.URLParam(r, "id")

	if err := h.admin.GrantMembership(r.Context(), actorFrom(r), userID, models.ParseMembershipTier(req.Tier)); err != nil {
		if errors.Is(err, admin.ErrUserNotFound) {
			response.Err(w, r, http.StatusNotFound, response.CodeNotFound, "user not found")
			return
		}
		log.Error("failed to grant membership", sl.Err(err))
		response.Internal(w, r)
		return
	}

	log.Info("membership granted", slog.String("user_id", userID), slog.String("tier", req.Tier))

	response.OK(w, r, map[string]any{
		"message": "Membership has been granted",
	})
}

// Revoke godoc
// @Summary Отзыв подписки
// @Description Сбрасывает статус подписки пользователя в none.
// @Tags Admin
// @Produce  json
// @Param id path string true "ID пользователя"
// @Success 200 {object} response.Response "Подписка отозвана"
// @Failure 404 {object} response.Response "Пользователь не найден"
// @Router /admin/users/{id}/membership [delete]
// @Security BearerAuth
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.memberships.Revoke"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID := chi.URLParam(r, "id")

	if err := h.admin.RevokeMembership(r.Context(), actorFrom(r), userID); err != nil {
		if errors.Is(err, admin.ErrUserNotFound) {
			response.Err(w, r, http.StatusNotFound, response.CodeNotFound, "user not found")
			return
		}
		log.Error("failed to revoke membership", sl.Err(err))
		response.Internal(w, r)
		return
	}

	log.Info("membership revoked", slog.String("user_id", userID))

	response.OK(w, r, map[string]any{
		"message": "Membership has been revoked",
	})
}
