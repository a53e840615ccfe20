// Package stripewebhook реализует HTTP-обработчик входящих событий Stripe.
//
// Подпись проверяется до разбора тела. Обработка идемпотентна, поэтому
// повторная доставка события безопасна.
package stripewebhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	stripelib "github.com/stripe/stripe-go/v82"

	"github.com/a8n-tools/platform/internal/http/response"
	"github.com/a8n-tools/platform/internal/lib/sl"
)

// maxBodyBytes ограничение размера тела webhook-запроса.
const maxBodyBytes = 1 << 20

// Verifier проверяет подпись Stripe-Signature.
type Verifier interface {
	VerifyWebhook(payload []byte, sigHeader string) (stripelib.Event, error)
}

// Service описывает интерфейс обработки событий подписок.
type Service interface {
	HandleEvent(ctx context.Context, event *stripelib.Event) error
}

// Handler обрабатывает webhook-запросы Stripe.
type Handler struct {
	log        *slog.Logger
	billing    Verifier
	membership Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, billing Verifier, membershipService Service) *Handler {
	return &Handler{
		log:        log,
		billing:    billing,
		membership: membershipService,
	}
}

// ServeHTTP godoc
// @Summary Stripe webhook
// @Description Принимает события Stripe. Подпись проверяется по заголовку Stripe-Signature.
// @Tags Webhooks
// @Accept  json
// @Produce  json
// @Success 200 {object} response.Response "Событие принято"
// @Failure 400 {object} response.Response "Подпись недействительна"
// @Router /webhooks/stripe [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhook.stripewebhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		response.Err(w, r, http.StatusBadRequest, response.CodeValidationError, "failed to read request body")
		return
	}

	event, err := h.billing.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Warn("webhook signature verification failed", sl.Err(err))
		response.Err(w, r, http.StatusBadRequest, response.CodeValidationError, "invalid webhook signature")
		return
	}

	log = log.With(
		slog.String("event_id", event.ID),
		slog.String("event_type", string(event.Type)),
	)

	if err := h.membership.HandleEvent(r.Context(), &event); err != nil {
		// Stripe повторит доставку при не-2xx ответе.
		log.Error("webhook processing failed", sl.Err(err))
		response.Internal(w, r)
		return
	}

	log.Info("webhook processed")

	response.OK(w, r, map[string]any{
		"received": true,
	})
}
