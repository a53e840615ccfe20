// Package passwordreset реализует HTTP-обработчики сброса пароля.
//
// Запрос сброса всегда возвращает 202, независимо от того, существует ли
// пользователь с таким email. Подтверждение отзывает все refresh-токены.
package passwordreset

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/a8n-tools/platform/internal/http/middlewarectx"
	"github.com/a8n-tools/platform/internal/http/response"
	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/services/auth"
)

// Request структура входных данных для запроса сброса пароля.
type Request struct {
	Email string `json:"email" validate:"required,email"`
}

// ConfirmRequest структура входных данных для подтверждения сброса.
type ConfirmRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=12"`
}

// Service описывает интерфейс бизнес-логики сброса пароля.
type Service interface {
	RequestPasswordReset(ctx context.Context, email string, meta auth.SessionMeta) error
	ResetPassword(ctx context.Context, rawToken, newPassword string, meta auth.SessionMeta) error
}

// RequestHandler обрабатывает запрос сброса пароля.
type RequestHandler struct {
	log      *slog.Logger
	auth     Service
	validate *validator.Validate
}

// NewRequest создает новый экземпляр RequestHandler.
func NewRequest(log *slog.Logger, authService Service) *RequestHandler {
	return &RequestHandler{
		log:      log,
		auth:     authService,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Запрос сброса пароля
// @Description Отправляет ссылку для сброса пароля, если email зарегистрирован. Ответ не раскрывает существование аккаунта.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Email пользователя"
// @Success 202 {object} response.Response "Запрос принят"
// @Failure 400 {object} response.Response "Некорректный JSON"
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Router /auth/password-reset [post]
func (h *RequestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.passwordreset.Request"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
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

	err := h.auth.RequestPasswordReset(r.Context(), req.Email, auth.SessionMeta{
		DeviceInfo: r.UserAgent(),
		IP:         middlewarectx.ClientIP(r),
	})
	if err != nil {
		log.Error("password reset request failed", sl.Err(err))
		response.Internal(w, r)
		return
	}

	response.Accepted(w, r, map[string]any{
		"message": "If the email is registered, a reset link has been sent",
	})
}

// ConfirmHandler обрабатывает подтверждение сброса пароля.
type ConfirmHandler struct {
	log      *slog.Logger
	auth     Service
	validate *validator.Validate
}

// NewConfirm создает новый экземпляр ConfirmHandler.
func NewConfirm(log *slog.Logger, authService Service) *ConfirmHandler {
	return &ConfirmHandler{
		log:      log,
		auth:     authService,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Подтверждение сброса пароля
// @Description Устанавливает новый пароль по одноразовому токену и отзывает все сессии.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body ConfirmRequest true "Токен и новый пароль"
// @Success 200 {object} response.Response "Пароль изменен"
// @Failure 401 {object} response.Response "Токен недействителен или истек"
// @Failure 422 {object} response.Response "Пароль не соответствует требованиям"
// @Router /auth/password-reset/confirm [post]
func (h *ConfirmHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.passwordreset.Confirm"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req ConfirmRequest
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

	err := h.auth.ResetPassword(r.Context(), req.Token, req.NewPassword, auth.SessionMeta{
		DeviceInfo: r.UserAgent(),
		IP:         middlewarectx.ClientIP(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			response.Err(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
		case errors.Is(err, auth.ErrWeakPassword):
			response.Err(w, r, http.StatusUnprocessableEntity, response.CodeValidationError, err.Error())
		default:
			log.Error("password reset failed", sl.Err(err))
			response.Internal(w, r)
		}
		return
	}

	response.OK(w, r, map[string]any{
		"message": "Password has been reset",
	})
}
