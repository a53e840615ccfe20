package client

import (
	"context"
	"errors"
	"sync"
)

// MembershipSnapshot слепок состояния подписки для чтения.
type MembershipSnapshot struct {
	Membership *Membership
	Loading    bool
	Err        string
}

// MembershipStore контейнер состояния подписки. Все переходы статуса
// подтверждаются сервером: после успешной операции состояние
// перечитывается, а не вычисляется локально.
type MembershipStore struct {
	client *Client

	mu         sync.Mutex
	membership *Membership
	loading    bool
	errMsg     string
}

// NewMembershipStore создает контейнер поверх клиента.
func NewMembershipStore(c *Client) *MembershipStore {
	return &MembershipStore{client: c}
}

// Snapshot возвращает текущее состояние.
func (s *MembershipStore) Snapshot() MembershipSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MembershipSnapshot{
		Membership: s.membership,
		Loading:    s.loading,
		Err:        s.errMsg,
	}
}

// FetchCurrent перечитывает состояние подписки. Идемпотентна, при
// конкурентных вызовах побеждает последний пришедший ответ.
func (s *MembershipStore) FetchCurrent(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	m, err := s.client.Memberships.Current(ctx)
	if err != nil {
		s.storeFailure(err)
		return err
	}

	s.mu.Lock()
	s.membership = m
	s.errMsg = ""
	s.mu.Unlock()
	return nil
}

// Checkout возвращает URL внешней страницы оплаты. Контейнер ничего не
// знает о структуре URL, это цель для полного редиректа.
func (s *MembershipStore) Checkout(ctx context.Context, tier string) (string, error) {
	url, err := s.client.Memberships.Checkout(ctx, tier)
	if err != nil {
		s.storeFailure(err)
		return "", err
	}
	return url, nil
}

// Cancel помечает подписку к отмене и перечитывает состояние.
func (s *MembershipStore) Cancel(ctx context.Context) error {
	return s.transition(ctx, s.client.Memberships.Cancel)
}

// CancelImmediately отменяет подписку сразу и перечитывает состояние.
func (s *MembershipStore) CancelImmediately(ctx context.Context) error {
	return s.transition(ctx, s.client.Memberships.CancelImmediately)
}

// Reactivate снимает отмену и перечитывает состояние.
func (s *MembershipStore) Reactivate(ctx context.Context) error {
	return s.transition(ctx, s.client.Memberships.Reactivate)
}

// transition выполняет серверный переход и затем берет авторитетное
// состояние с сервера. Правила переходов, включая grace-период, живут
// на сервере, локально следующий статус не угадывается.
func (s *MembershipStore) transition(ctx context.Context, op func(context.Context) error) error {
	if err := op(ctx); err != nil {
		s.storeFailure(err)
		return err
	}
	return s.FetchCurrent(ctx)
}

func (s *MembershipStore) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *MembershipStore) storeFailure(err error) {
	msg := err.Error()
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	}

	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
}
