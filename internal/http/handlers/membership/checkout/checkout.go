// Package checkout реализует HTTP-обработчик создания Stripe Checkout сессии.
package checkout

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
	"github.com/a8n-tools/platform/internal/services/membership"
)

// Request структура входных данных для оформления подписки.
type Request struct {
	Tier string `json:"tier" validate:"required,oneof=personal business"`
}

// Service описывает интерфейс бизнес-логики подписок.
type Service interface {
	Checkout(ctx context.Context, userID string, tier models.MembershipTier) (string, error)
}

// Handler обрабатывает создание checkout-сессии.
type Handler struct {
	log        *slog.Logger
	membership Service
	validate   *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, membershipService Service) *Handler {
	return &Handler{
		log:        log,
		membership: membershipService,
		validate:   validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Оформление подписки
// @Description Создает Stripe Checkout сессию для выбранного тарифа и возвращает URL для редиректа.
// @Tags Membership
// @Accept  json
// @Produce  json
// @Param request body Request true "Тариф подписки"
// @Success 200 {object} response.Response "URL checkout-сессии"
// @Failure 401 {object} response.Response "Не авторизован"
// @Failure 409 {object} response.Response "Подписка уже активна"
// @Failure 422 {object} response.Response "Тариф недоступен"
// @Router /membership/checkout [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.membership.checkout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	claims, ok := middlewarectx.ClaimsFromContext(r.Context())
	if !ok {
		response.Err(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		return
	}

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

	url, err := h.membership.Checkout(r.Context(), claims.UserID, models.ParseMembershipTier(req.Tier))
	if err != nil {
		switch {
		case errors.Is(err, membership.ErrAlreadyActive):
			response.Err(w, r, http.StatusConflict, response.CodeConflict, "Membership is already active")
		case errors.Is(err, membership.ErrTierUnavailable):
			response.Err(w, r, http.StatusUnprocessableEntity, response.CodeValidationError, "Business tier is not available")
		default:
			log.Error("checkout failed", sl.Err(err))
			response.Internal(w, r)
		}
		return
	}

	log.Info("checkout session created", slog.String("user_id", claims.UserID))

	response.OK(w, r, map[string]any{
		"checkout_url": url,
	})
}
