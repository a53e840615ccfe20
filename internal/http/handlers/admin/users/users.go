// Package users реализует HTTP-обработчики управления пользователями из админки.
package users

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

// ChangeRoleRequest структура входных данных для смены роли.
type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=subscriber admin"`
}

// ResetPasswordRequest структура входных данных для сброса пароля пользователя.
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=12"`
}

// Service описывает интерфейс управления пользователями.
type Service interface {
	ListUsers(ctx context.Context, filter models.UserFilter, limit, offset int) ([]*models.User, int, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	DeleteUser(ctx context.Context, actor admin.Actor, userID string) error
	ChangeRole(ctx context.Context, actor admin.Actor, userID string, role models.Role) error
	ResetUserPassword(ctx context.Context, actor admin.Actor, userID, newPassword string) error
	Impersonate(ctx context.Context, actor admin.Actor, userID string) (string, error)
}

// Handler обрабатывает запросы управления пользователями.
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

func userView(u *models.User) map[string]any {
	return map[string]any{
		"id":                u.ID,
		"email":             u.Email,
		"email_verified":    u.EmailVerified,
		"role":              u.Role,
		"membership_status": u.MembershipStatus,
		"membership_tier":   u.MembershipTier,
		"price_locked":      u.PriceLocked,
		"grace_period_end":  u.GracePeriodEnd,
		"created_at":        u.CreatedAt,
		"last_login_at":     u.LastLoginAt,
	}
}

// List godoc
// @Summary Список пользователей
// @Tags Admin
// @Produce  json
// @Param page query int false "Номер страницы"
// @Param page_size query int false "Размер страницы"
// @Param search query string false "Подстрока email"
// @Param status query string false "Фильтр по статусу подписки"
// @Success 200 {object} response.Response "Страница пользователей"
// @Router /admin/users [get]
// @Security BearerAuth
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.users.List"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	filter := models.UserFilter{Search: r.URL.Query().Get("search")}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.ParseMembershipStatus(raw)
		filter.Status = &status
	}

	page, pageSize, offset := response.ParsePage(r)

	users, total, err := h.admin.ListUsers(r.Context(), filter, pageSize, offset)
	if err != nil {
		log.Error("failed to list users", sl.Err(err))
		response.Internal(w, r)
		return
	}

	views := make([]map[string]any, 0, len(users))
	for _, u := range users {
		views = append(views, userView(u))
	}

	response.OK(w, r, response.NewPage(views, total, page, pageSize))
}

// Get godoc
// @Summary Данные пользователя
// @Tags Admin
// @Produce  json
// @Param id path string true "ID пользователя"
// @Success 200 {object} response.Response "Данные пользователя"
// @Failure 404 {object} response.Response "Пользователь не найден"
// @Router /admin/users/{id} [get]
// @Security BearerAuth
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.users.Get"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, err := h.admin.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, admin.ErrUserNotFound) {
			response.Err(w, r, http.StatusNotFound, response.CodeNotFound, "user not found")
			return
		}
		log.Error("failed to load user", sl.Err(err))
		response.Internal(w, r)
		return
	}

	response.OK(w, r, userView(user))
}

// Delete godoc
// @Summary Удаление пользователя
// @Description Мягко удаляет аккаунт и отзывает все его сессии. Удалить собственный аккаунт нельзя.
// @Tags Admin
// @Produce  json
// @Param id path string true "ID пользователя"
// @Success 200 {object} response.Response "Пользователь удален"
// @Failure 404 {object} response.Response "Пользователь не найден"
// @Failure 409 {object} response.Response "Нельзя удалить собственный аккаунт"
// @Router /admin/users/{id} [delete]
// @Security BearerAuth
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.users.Delete"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID := chi.URLParam(r, "id")

	if err := h.admin.DeleteUser(r.Context(), actorFrom(r), userID); err != nil {
		switch {
		case errors.Is(err, admin.ErrSelfAction):
			response.Err(w, r, http.StatusConflict, response.CodeConflict, "Cannot delete your own account")
		case errors.Is(err, admin.ErrUserNotFound):
			response.Err(w, r, http.StatusNotFound, response.CodeNotFound, "user not found")
		default:
			log.Error("failed to delete user", sl.Err(err))
			response.Internal(w, r)
		}
		return
	}

	log.Info("user deleted", slog.String("user_id", userID))

	response.OK(w, r, map[string]any{
		"message": "User has been deleted",
	})
}

// ChangeRole godoc
// @Summary Смена роли пользователя
// @Description Назначает роль subscriber или admin. Сменить собственную роль нельзя.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param id path string true "ID пользователя"
// @Param request body ChangeRoleRequest true "Новая роль"
// @Success 200 {object} response.Response "Роль изменена"
// @Failure 409 {object} response.Response "Нельзя сменить собственную роль"
// @Router /admin/users/{id}/role [put]
// @Security BearerAuth
func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.users.ChangeRole"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req ChangeRoleRequest
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

	if err := h.admin.ChangeRole(r.Context(), actorFrom(r), userID, models.ParseRole(req.Role)); err != nil {
		switch {
		case errors.Is(err, admin.ErrSelfAction):
			response.Err(w, r, http.StatusConflict, response.CodeConflict, "Cannot change your own role")
		case errors.Is(err, admin.ErrUserNotFound):
			response.Err(w, r, http.StatusNotFound, response.CodeNotFound, "user not found")
		default:
			log.Error("failed to change role", sl.Err(err))
			response.Internal(w, r)
		}
		return
	}

	log.Info("user role changed", slog.String("user_id", userID), slog.String("role", req.Role))

	response.OK(w, r, map[string]any{
		"message": "Role has been updated",
	})
}

// ResetPassword godoc
// @Summary Сброс пароля пользователя
// @Description Устанавливает новый пароль и отзывает все сессии пользователя.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param id path string true "ID пользователя"
// @Param request body ResetPasswordRequest true "Новый пароль"
// @Success 200 {object} response.Response "Пароль изменен"
// @Failure 422 {object} response.Response "Пароль не соответствует требованиям"
// @Router /admin/users/{id}/password [put]
// @Security BearerAuth
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.users.ResetPassword"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req ResetPasswordRequest
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

	if err := h.admin.ResetUserPassword(r.Context(), actorFrom(r), userID, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, admin.ErrUserNotFound):
			response.Err(w, r, http.StatusNotFound, response.CodeNotFound, "user not found")
		case errors.Is(err, admin.ErrWeakPassword):
			response.Err(w, r, http.StatusUnprocessableEntity, response.CodeValidationError, err.Error())
		default:
			log.Error("failed to reset password", sl.Err(err))
			response.Internal(w, r)
		}
		return
	}

	log.Info("user password reset", slog.String("user_id", userID))

	response.OK(w, r, map[string]any{
		"message": "Password has been reset",
	})
}

// Impersonate godoc
// @Summary Вход от имени пользователя
// @Description Выпускает access токен от имени целевого пользователя. Операция пишется в аудит.
// @Tags Admin
// @Produce  json
// @Param id path string true "ID пользователя"
// @Success 200 {object} response.Response "Access токен целевого пользователя"
// @Failure 404 {object} response.Response "Пользователь не найден"
// @Failure 409 {object} response.Response "Нельзя имперсонировать себя"
// @Router /admin/users/{id}/impersonate [post]
// @Security BearerAuth
func (h *Handler) Impersonate(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.users.Impersonate"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID := chi.URLParam(r, "id")

	token, err := h.admin.Impersonate(r.Context(), actorFrom(r), userID)
	if err != nil {
		switch {
		case errors.Is(err, admin.ErrSelfAction):
			response.Err(w, r, http.StatusConflict, response.CodeConflict, "Cannot impersonate yourself")
		case errors.Is(err, admin.ErrUserNotFound):
			response.Err(w, r, http.StatusNotFound, response.CodeNotFound, "user not found")
		default:
			log.Error("failed to impersonate user", sl.Err(err))
			response.Internal(w, r)
		}
		return
	}

	log.Warn("user impersonated", slog.String("user_id", userID))

	response.OK(w, r, map[string]any{
		"access_token": token,
	})
}
