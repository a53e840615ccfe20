// Package billing инкапсулирует работу со Stripe: создание клиентов,
// checkout-сессий, управление подписками и проверку подписей webhook.
// Вся остальная кодовая база работает с этим пакетом, а не со Stripe напрямую.
package billing

import (
	"fmt"

	stripelib "github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/a8n-tools/platform/internal/config"
	"github.com/a8n-tools/platform/internal/models"
)

// Client обертка над Stripe API с настройками платформы.
type Client struct {
	cfg config.Stripe
}

// New настраивает глобальный ключ Stripe и возвращает клиента.
func New(cfg config.Stripe) *Client {
	stripelib.Key = cfg.SecretKey
	return &Client{cfg: cfg}
}

// PriceIDForTier возвращает Stripe price id для тарифа.
func (c *Client) PriceIDForTier(tier models.MembershipTier) string {
	if tier == models.TierBusiness {
		return c.cfg.BusinessPriceID
	}
	return c.cfg.PersonalPriceID
}

// CreateCustomer создает клиента Stripe для пользователя платформы.
func (c *Client) CreateCustomer(email, userID string) (string, error) {
	const op = "billing.CreateCustomer"

	cust, err := customer.New(&stripelib.CustomerParams{
		Email: stripelib.String(email),
		Metadata: map[string]string{
			"user_id": userID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession создает checkout-сессию подписки и возвращает URL
// для редиректа пользователя.
func (c *Client) CreateCheckoutSession(customerID, userID string, tier models.MembershipTier) (string, error) {
	const op = "billing.CreateCheckoutSession"

	params := &stripelib.CheckoutSessionParams{
		Mode:       stripelib.String(string(stripelib.CheckoutSessionModeSubscription)),
		Customer:   stripelib.String(customerID),
		SuccessURL: stripelib.String(c.cfg.SuccessURL),
		CancelURL:  stripelib.String(c.cfg.CancelURL),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{
			{
				Price:    stripelib.String(c.PriceIDForTier(tier)),
				Quantity: stripelib.Int64(1),
			},
		},
		Metadata: map[string]string{
			"user_id": userID,
			"tier":    string(tier),
		},
	}
	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if sess.URL == "" {
		return "", fmt.Errorf("%s: stripe returned empty checkout URL", op)
	}
	return sess.URL, nil
}

// CancelSubscription помечает подписку к отмене в конце оплаченного периода.
func (c *Client) CancelSubscription(subscriptionID string) error {
	const op = "billing.CancelSubscription"

	_, err := subscription.Update(subscriptionID, &stripelib.SubscriptionParams{
		CancelAtPeriodEnd: stripelib.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CancelSubscriptionNow отменяет подписку немедленно, без ожидания конца
// периода. Stripe пришлет customer.subscription.deleted.
func (c *Client) CancelSubscriptionNow(subscriptionID string) error {
	const op = "billing.CancelSubscriptionNow"

	_, err := subscription.Cancel(subscriptionID, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ReactivateSubscription снимает отложенную отмену, пока период не истек.
func (c *Client) ReactivateSubscription(subscriptionID string) error {
	const op = "billing.ReactivateSubscription"

	_, err := subscription.Update(subscriptionID, &stripelib.SubscriptionParams{
		CancelAtPeriodEnd: stripelib.Bool(false),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// BillingPortalURL создает сессию биллинг-портала Stripe.
func (c *Client) BillingPortalURL(customerID, returnURL string) (string, error) {
	const op = "billing.BillingPortalURL"

	sess, err := portalsession.New(&stripelib.BillingPortalSessionParams{
		Customer:  stripelib.String(customerID),
		ReturnURL: stripelib.String(returnURL),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return sess.URL, nil
}

// VerifyWebhook проверяет подпись webhook-запроса и возвращает событие.
func (c *Client) VerifyWebhook(payload []byte, sigHeader string) (stripelib.Event, error) {
	const op = "billing.VerifyWebhook"

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, c.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return stripelib.Event{}, fmt.Errorf("%s: %w", op, err)
	}
	return event, nil
}
