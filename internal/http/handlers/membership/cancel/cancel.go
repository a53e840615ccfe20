// Package cancel реализует HTTP-обработчики отмены подписки и отката отмены.
//
// Отмена мягкая: подписка продолжает действовать до конца оплаченного
// периода и до этого момента может быть возобновлена.
package cancel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/a8n-tools/platform/internal/http/middlewarectx"
	"github.com/a8n-tools/platform/internal/http/response"
	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/services/membership"
)

// Service описывает интерфейс бизнес-логики подписок.
type Service interface {
	Cancel(ctx context.Context, userID, ip string) error
	CancelImmediately(ctx context.Context, userID, ip string) error
	Reactivate(ctx context.Context, userID, ip string) error
}

// Handler обрабатывает отмену подписки.
type Handler struct {
	log        *slog.Logger
	membership Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, membershipService Service) *Handler {
	return &Handler{log: log, membership: membershipService}
}

// ServeHTTP godoc
// @Summary Отмена подписки
// @Description Помечает подписку к отмене в конце оплаченного периода.
// @Tags Membership
// @Produce  json
// @Success 200 {object} response.Response "Подписка будет отменена"
// @Failure 401 {object} response.Response "Не авторизован"
// @Failure 404 {object} response.Response "Активная подписка не найдена"
// @Router /membership/cancel [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.membership.cancel"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	claims, ok := middlewarectx.ClaimsFromContext(r.Context())
	if !ok {
		response.Err(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		return
	}

	if err := h.membership.Cancel(r.Context(), claims.UserID, middlewarectx.ClientIP(r)); err != nil {
		if errors.Is(err, membership.ErrNoMembership) {
			response.Err(w, r, http.StatusNotFound, response.CodeNotFound, "No active membership")
			return
		}
		log.Error("cancel failed", sl.Err(err))
		response.Internal(w, r)
		return
	}

	log.Info("membership scheduled for cancellation", slog.String("user_id", claims.UserID))

	response.OK(w, r, map[string]any{
		"message": "Membership will be canceled at the end of the current period",
	})
}

// NowHandler обрабатывает немедленную отмену подписки.
type NowHandler struct {
	log        *slog.Logger
	membership Service
}

// NewNow создает новый экземпляр NowHandler.
func NewNow(log *slog.Logger, membershipService Service) *NowHandler {
	return &NowHandler{log: log, membership: membershipService}
}

// ServeHTTP godoc
// @Summary Немедленная отмена подписки
// @Description Отменяет подписку сразу. Доступ теряется немедленно, остаток периода не возвращается.
// @Tags Membership
// @Produce  json
// @Success 200 {object} response.Response "Подписка отменена"
// @Failure 401 {object} response.Response "Не авторизован"
// @Failure 404 {object} response.Response "Активная подписка не найдена"
// @Router /membership/cancel-now [post]
// @Security BearerAuth
func (h *NowHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.membership.cancel.Now"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	claims, ok := middlewarectx.ClaimsFromContext(r.Context())
	if !ok {
		response.Err(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		return
	}

	if err := h.membership.CancelImmediately(r.Context(), claims.UserID, middlewarectx.ClientIP(r)); err != nil {
		if errors.Is(err, membership.ErrNoMembership) {
			response.Err(w, r, http.StatusNotFound, response.CodeNotFound, "No active membership")
			return
		}
		log.Error("cancel now failed", sl.Err(err))
		response.Internal(w, r)
		return
	}

	log.Info("membership canceled immediately", slog.String("user_id", claims.UserID))

	response.OK(w, r, map[string]any{
		"message": "Membership has been canceled",
	})
}

// ReactivateHandler обрабатывает откат запланированной отмены.
type ReactivateHandler struct {
	log        *slog.Logger
	membership Service
}

// NewReactivate создает новый экземпляр ReactivateHandler.
func NewReactivate(log *slog.Logger, membershipService Service) *ReactivateHandler {
	return &ReactivateHandler{log: log, membership: membershipService}
}

// ServeHTTP godoc
// @Summary Возобновление подписки
// @Description Снимает запланированную отмену, пока период еще не закончился.
// @Tags Membership
// @Produce  json
// @Success 200 {object} response.Response "Отмена снята"
// @Failure 401 {object} response.Response "Не авторизован"
// @Failure 404 {object} response.Response "Активная подписка не найдена"
// @Failure 409 {object} response.Response "Отмена не запланирована"
// @Router /membership/reactivate [post]
// @Security BearerAuth
func (h *ReactivateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.membership.cancel.Reactivate"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	claims, ok := middlewarectx.ClaimsFromContext(r.Context())
	if !ok {
		response.Err(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		return
	}

	if err := h.membership.Reactivate(r.Context(), claims.UserID, middlewarectx.ClientIP(r)); err != nil {
		if errors.Is(err, membership.ErrNoMembership) {
			response.Err(w, r, http.StatusNotFound, response.CodeNotFound, "No active membership")
			return
		}
		if errors.Is(err, membership.ErrNotCanceling) {
			response.Err(w, r, http.StatusConflict, response.CodeConflict, "Membership is not pending cancellation")
			return
		}
		log.Error("reactivate failed", sl.Err(err))
		response.Internal(w, r)
		return
	}

	log.Info("membership reactivated", slog.String("user_id", claims.UserID))

	response.OK(w, r, map[string]any{
		"message": "Membership cancellation has been reverted",
	})
}
