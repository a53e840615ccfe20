// Package login реализует HTTP-обработчик входа по email и паролю.
//
// При успешной аутентификации access и refresh токены выставляются в
// HttpOnly cookies; тело ответа содержит данные пользователя.
package login

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
	"github.com/a8n-tools/platform/internal/models"
	"github.com/a8n-tools/platform/internal/services/auth"
)

// Request структура входных данных для авторизации.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember"`
}

// Service описывает интерфейс бизнес-логики входа.
type Service interface {
	Login(ctx context.Context, email, rawPassword string, meta auth.SessionMeta) (*models.User, auth.TokenPair, error)
}

// Handler обрабатывает HTTP-запросы входа.
type Handler struct {
	log      *slog.Logger
	auth     Service
	cookies  *middlewarectx.CookieWriter
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, authService Service, cookies *middlewarectx.CookieWriter) *Handler {
	return &Handler{
		log:      log,
		auth:     authService,
		cookies:  cookies,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Вход пользователя
// @Description Аутентифицирует по email и паролю. Токены выставляются в cookies.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Учетные данные"
// @Success 200 {object} response.Response "Успешный вход"
// @Failure 400 {object} response.Response "Некорректный JSON"
// @Failure 401 {object} response.Response "Неверные учетные данные"
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Router /auth/login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

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

	user, pair, err := h.auth.Login(r.Context(), req.Email, req.Password, auth.SessionMeta{
		DeviceInfo: r.UserAgent(),
		IP:         middlewarectx.ClientIP(r),
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.Err(w, r, http.StatusUnauthorized, response.CodeInvalidCredentials, "Invalid email or password")
			return
		}
		log.Error("login failed", sl.Err(err))
		response.Internal(w, r)
		return
	}

	h.cookies.SetAuthCookies(w, pair.AccessToken, pair.RefreshToken, req.Remember)
	log.Info("login success", slog.String("user_id", user.ID))

	response.OK(w, r, map[string]any{
		"id":                user.ID,
		"email":             user.Email,
		"role":              user.Role,
		"membership_status": user.MembershipStatus,
		"membership_tier":   user.MembershipTier,
	})
}
