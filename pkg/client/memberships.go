package client

import (
	"context"
	"fmt"
)

// MembershipsService вызовы управления подпиской.
type MembershipsService struct {
	c *Client
}

// Current возвращает состояние подписки текущего пользователя.
func (s *MembershipsService) Current(ctx context.Context) (*Membership, error) {
	var m Membership
	if err := s.c.get(ctx, "/membership", &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Checkout создает Stripe Checkout сессию и возвращает URL для
// полного редиректа страницы.
func (s *MembershipsService) Checkout(ctx context.Context, tier string) (string, error) {
	var out struct {
		CheckoutURL string `json:"checkout_url"`
	}
	if err := s.c.post(ctx, "/membership/checkout", map[string]any{"tier": tier}, &out); err != nil {
		return "", err
	}
	return out.CheckoutURL, nil
}

// Cancel помечает подписку к отмене в конце оплаченного периода.
func (s *MembershipsService) Cancel(ctx context.Context) error {
	return s.c.post(ctx, "/membership/cancel", nil, nil)
}

// CancelImmediately отменяет подписку сразу, без ожидания конца периода.
func (s *MembershipsService) CancelImmediately(ctx context.Context) error {
	return s.c.post(ctx, "/membership/cancel-now", nil, nil)
}

// Reactivate снимает запланированную отмену.
func (s *MembershipsService) Reactivate(ctx context.Context) error {
	return s.c.post(ctx, "/membership/reactivate", nil, nil)
}

// BillingPortal возвращает URL сессии Stripe Billing Portal.
func (s *MembershipsService) BillingPortal(ctx context.Context) (string, error) {
	var out struct {
		PortalURL string `json:"portal_url"`
	}
	if err := s.c.post(ctx, "/membership/portal", nil, &out); err != nil {
		return "", err
	}
	return out.PortalURL, nil
}

// Payments возвращает страницу истории платежей.
func (s *MembershipsService) Payments(ctx context.Context, page, pageSize int) (Page[Payment], error) {
	var out Page[Payment]
	path := fmt.Sprintf("/membership/payments?page=%d&page_size=%d", floorPage(page), pageSize)
	if err := s.c.get(ctx, path, &out); err != nil {
		return Page[Payment]{}, err
	}
	return out, nil
}
