// Package me реализует HTTP-обработчики личного кабинета: профиль,
// смена пароля и список активных сессий.
package me

import (
	"context"
	"database/sql"
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
	"github.com/a8n-tools/platform/internal/services/auth"
)

// ChangePasswordRequest структура входных данных для смены пароля.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=12"`
}

// Service описывает интерфейс бизнес-логики личного кабинета.
type Service interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	ChangePassword(ctx context.Context, userID, current, newPassword string, meta auth.SessionMeta) error
	Sessions(ctx context.Context, userID string) ([]*models.RefreshToken, error)
	RevokeSession(ctx context.Context, userID, sessionID string) error
}

// Handler обрабатывает запрос профиля текущего пользователя.
type Handler struct {
	log  *slog.Logger
	auth Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, authService Service) *Handler {
	return &Handler{log: log, auth: authService}
}

// ServeHTTP godoc
// @Summary Профиль текущего пользователя
// @Tags User
// @Produce  json
// @Success 200 {object} response.Response "Данные пользователя"
// @Failure 401 {object} response.Response "Не авторизован"
// @Router /me [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.me"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	claims, ok := middlewarectx.ClaimsFromContext(r.Context())
	if !ok {
		response.Err(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		return
	}

	user, err := h.auth.GetUser(r.Context(), claims.UserID)
	if err != nil {
		log.Error("failed to load user", sl.Err(err))
		response.Internal(w, r)
		return
	}

	response.OK(w, r, map[string]any{
		"id":                user.ID,
		"email":             user.Email,
		"email_verified":    user.EmailVerified,
		"role":              user.Role,
		"membership_status": user.MembershipStatus,
		"membership_tier":   user.MembershipTier,
		"price_locked":      user.PriceLocked,
		"created_at":        user.CreatedAt,
		"last_login_at":     user.LastLoginAt,
	})
}

// PasswordHandler обрабатывает смену пароля.
type PasswordHandler struct {
	log      *slog.Logger
	auth     Service
	validate *validator.Validate
}

// NewPassword создает новый экземпляр PasswordHandler.
func NewPassword(log *slog.Logger, authService Service) *PasswordHandler {
	return &PasswordHandler{
		log:      log,
		auth:     authService,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Смена пароля
// @Description Меняет пароль после проверки текущего. Остальные сессии отзываются.
// @Tags User
// @Accept  json
// @Produce  json
// @Param request body ChangePasswordRequest true "Текущий и новый пароль"
// @Success 200 {object} response.Response "Пароль изменен"
// @Failure 401 {object} response.Response "Текущий пароль неверен"
// @Failure 422 {object} response.Response "Пароль не соответствует требованиям"
// @Router /me/password [put]
// @Security BearerAuth
func (h *PasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.me.Password"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	claims, ok := middlewarectx.ClaimsFromContext(r.Context())
	if !ok {
		response.Err(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		return
	}

	var req ChangePasswordRequest
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

	err := h.auth.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword, auth.SessionMeta{
		DeviceInfo: r.UserAgent(),
		IP:         middlewarectx.ClientIP(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			response.Err(w, r, http.StatusUnauthorized, response.CodeInvalidCredentials, "Current password is incorrect")
		case errors.Is(err, auth.ErrWeakPassword):
			response.Err(w, r, http.StatusUnprocessableEntity, response.CodeValidationError, err.Error())
		default:
			log.Error("change password failed", sl.Err(err))
			response.Internal(w, r)
		}
		return
	}

	response.OK(w, r, map[string]any{
		"message": "Password has been changed",
	})
}

// SessionsHandler обрабатывает запрос списка активных сессий.
type SessionsHandler struct {
	log  *slog.Logger
	auth Service
}

// NewSessions создает новый экземпляр SessionsHandler.
func NewSessions(log *slog.Logger, authService Service) *SessionsHandler {
	return &SessionsHandler{log: log, auth: authService}
}

// ServeHTTP godoc
// @Summary Активные сессии пользователя
// @Tags User
// @Produce  json
// @Success 200 {object} response.Response "Список сессий"
// @Failure 401 {object} response.Response "Не авторизован"
// @Router /me/sessions [get]
// @Security BearerAuth
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.me.Sessions"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	claims, ok := middlewarectx.ClaimsFromContext(r.Context())
	if !ok {
		response.Err(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		return
	}

	sessions, err := h.auth.Sessions(r.Context(), claims.UserID)
	if err != nil {
		log.Error("failed to list sessions", sl.Err(err))
		response.Internal(w, r)
		return
	}

	views := make([]map[string]any, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, map[string]any{
			"id":           s.ID,
			"device_info":  s.DeviceInfo,
			"ip_address":   s.IPAddress,
			"created_at":   s.CreatedAt,
			"last_used_at": s.LastUsedAt,
			"expires_at":   s.ExpiresAt,
		})
	}

	response.OK(w, r, map[string]any{
		"sessions": views,
	})
}

// RevokeSessionHandler обрабатывает отзыв одной сессии.
type RevokeSessionHandler struct {
	log  *slog.Logger
	auth Service
}

// NewRevokeSession создает новый экземпляр RevokeSessionHandler.
func NewRevokeSession(log *slog.Logger, authService Service) *RevokeSessionHandler {
	return &RevokeSessionHandler{log: log, auth: authService}
}

// ServeHTTP godoc
// @Summary Отзыв сессии
// @Description Отзывает одну сессию пользователя по ее id.
// @Tags User
// @Produce  json
// @Param id path string true "ID сессии"
// @Success 200 {object} response.Response "Сессия отозвана"
// @Failure 404 {object} response.Response "Сессия не найдена"
// @Router /me/sessions/{id} [delete]
// @Security BearerAuth
func (h *RevokeSessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.me.RevokeSession"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	claims, ok := middlewarectx.ClaimsFromContext(r.Context())
	if !ok {
		response.Err(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		return
	}

	if err := h.auth.RevokeSession(r.Context(), claims.UserID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.Err(w, r, http.StatusNotFound, response.CodeNotFound, "session not found")
			return
		}
		log.Error("failed to revoke session", sl.Err(err))
		response.Internal(w, r)
		return
	}

	response.OK(w, r, map[string]any{
		"message": "Session has been revoked",
	})
}
