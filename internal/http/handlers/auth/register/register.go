// Package register реализует HTTP-обработчик регистрации пользователей.
//
// Выполняется декодирование JSON, валидация полей и делегирование операции
// сервису аутентификации. При успехе открывается сессия: access и refresh
// токены выставляются в HttpOnly cookies.
package register

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

// Request структура входных данных регистрации.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=12"`
	Remember bool   `json:"remember"`
}

// Service описывает интерфейс бизнес-логики регистрации.
type Service interface {
	Register(ctx context.Context, email, rawPassword string, meta auth.SessionMeta) (*models.User, auth.TokenPair, error)
}

// Handler обрабатывает HTTP-запросы регистрации.
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
// @Summary Регистрация пользователя
// @Description Создает аккаунт и открывает сессию. Токены выставляются в cookies.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные регистрации"
// @Success 201 {object} response.Response "Аккаунт создан"
// @Failure 400 {object} response.Response "Некорректный JSON"
// @Failure 409 {object} response.Response "Email уже зарегистрирован"
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Router /auth/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

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

	user, pair, err := h.auth.Register(r.Context(), req.Email, req.Password, auth.SessionMeta{
		DeviceInfo: r.UserAgent(),
		IP:         middlewarectx.ClientIP(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			response.Err(w, r, http.StatusConflict, response.CodeConflict, "Email already registered")
		case errors.Is(err, auth.ErrWeakPassword):
			response.Err(w, r, http.StatusUnprocessableEntity, response.CodeValidationError, err.Error())
		default:
			log.Error("registration failed", sl.Err(err))
			response.Internal(w, r)
		}
		return
	}

	h.cookies.SetAuthCookies(w, pair.AccessToken, pair.RefreshToken, req.Remember)
	log.Info("user registered", slog.String("user_id", user.ID))

	response.Created(w, r, map[string]any{
		"id":                user.ID,
		"email":             user.Email,
		"role":              user.Role,
		"membership_status": user.MembershipStatus,
	})
}
