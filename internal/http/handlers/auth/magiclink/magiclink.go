// Package magiclink реализует HTTP-обработчики входа по одноразовой ссылке.
//
// Запрос ссылки всегда возвращает 202, независимо от того, существует ли
// пользователь с таким email. Проверка использует токен ровно один раз.
package magiclink

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

// Request структура входных данных для запроса magic link.
type Request struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyRequest структура входных данных для проверки magic link.
type VerifyRequest struct {
	Token    string `json:"token" validate:"required"`
	Remember bool   `json:"remember"`
}

// Service описывает интерфейс бизнес-логики magic link.
type Service interface {
	RequestMagicLink(ctx context.Context, email string, meta auth.SessionMeta) error
	ConsumeMagicLink(ctx context.Context, rawToken string, meta auth.SessionMeta) (*models.User, auth.TokenPair, error)
}

// RequestHandler обрабатывает запрос ссылки для входа.
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
// @Summary Запрос magic link
// @Description Отправляет одноразовую ссылку для входа, если email зарегистрирован. Ответ не раскрывает существование аккаунта.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Email пользователя"
// @Success 202 {object} response.Response "Запрос принят"
// @Failure 400 {object} response.Response "Некорректный JSON"
// @Failure 422 {object} response.Response "Ошибка валидации"
// @Router /auth/magic-link [post]
func (h *RequestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.magiclink.Request"

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

	err := h.auth.RequestMagicLink(r.Context(), req.Email, auth.SessionMeta{
		DeviceInfo: r.UserAgent(),
		IP:         middlewarectx.ClientIP(r),
	})
	if err != nil {
		log.Error("magic link request failed", sl.Err(err))
		response.Internal(w, r)
		return
	}

	response.Accepted(w, r, map[string]any{
		"message": "If the email is registered, a sign-in link has been sent",
	})
}

// VerifyHandler обрабатывает проверку токена из ссылки.
type VerifyHandler struct {
	log      *slog.Logger
	auth     Service
	cookies  *middlewarectx.CookieWriter
	validate *validator.Validate
}

// NewVerify создает новый экземпляр VerifyHandler.
func NewVerify(log *slog.Logger, authService Service, cookies *middlewarectx.CookieWriter) *VerifyHandler {
	return &VerifyHandler{
		log:      log,
		auth:     authService,
		cookies:  cookies,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Вход по magic link
// @Description Проверяет одноразовый токен и открывает сессию. Токены выставляются в cookies.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body VerifyRequest true "Одноразовый токен"
// @Success 200 {object} response.Response "Успешный вход"
// @Failure 401 {object} response.Response "Токен недействителен или истек"
// @Router /auth/magic-link/verify [post]
func (h *VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.magiclink.Verify"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req VerifyRequest
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

	user, pair, err := h.auth.ConsumeMagicLink(r.Context(), req.Token, auth.SessionMeta{
		DeviceInfo: r.UserAgent(),
		IP:         middlewarectx.ClientIP(r),
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			response.Err(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
			return
		}
		log.Error("magic link verify failed", sl.Err(err))
		response.Internal(w, r)
		return
	}

	h.cookies.SetAuthCookies(w, pair.AccessToken, pair.RefreshToken, req.Remember)
	log.Info("magic link login success", slog.String("user_id", user.ID))

	response.OK(w, r, map[string]any{
		"id":                user.ID,
		"email":             user.Email,
		"role":              user.Role,
		"membership_status": user.MembershipStatus,
		"membership_tier":   user.MembershipTier,
	})
}
