package client

import (
	"context"
	"errors"
	"sync"
)

// Persister хранит подсказку "пользователь был аутентифицирован" между
// перезапусками. Сам пользователь никогда не сохраняется: это подсказка
// для тихого восстановления сессии, а не учетные данные.
type Persister interface {
	WasAuthenticated() bool
	SetAuthenticated(v bool)
}

// memoryPersister хранит флаг только в памяти процесса.
type memoryPersister struct {
	mu sync.Mutex
	v  bool
}

func (p *memoryPersister) WasAuthenticated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.v
}

func (p *memoryPersister) SetAuthenticated(v bool) {
	p.mu.Lock()
	p.v = v
	p.mu.Unlock()
}

// AuthSnapshot слепок состояния аутентификации для чтения.
type AuthSnapshot struct {
	User          *User
	Authenticated bool
	Loading       bool
	Err           string
}

// AuthStore контейнер состояния сессии. Все изменения состояния идут
// через методы-команды, чтение через Snapshot. Ошибки удаленных вызовов
// не пробрасываются дальше: они сохраняются строкой сообщения.
type AuthStore struct {
	client    *Client
	persister Persister

	mu            sync.Mutex
	user          *User
	authenticated bool
	loading       bool
	errMsg        string
}

// NewAuthStore создает контейнер. Если persister равен nil, подсказка
// живет только в памяти.
func NewAuthStore(c *Client, persister Persister) *AuthStore {
	if persister == nil {
		persister = &memoryPersister{}
	}
	return &AuthStore{client: c, persister: persister}
}

// Snapshot возвращает текущее состояние.
func (s *AuthStore) Snapshot() AuthSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AuthSnapshot{
		User:          s.user,
		Authenticated: s.authenticated,
		Loading:       s.loading,
		Err:           s.errMsg,
	}
}

// Login выполняет вход. При успехе сохраняет пользователя, при ошибке
// сохраняет сообщение и оставляет состояние неаутентифицированным.
// Повторов не делает.
func (s *AuthStore) Login(ctx context.Context, email, password string, remember bool) error {
	s.setLoading(true)
	defer s.setLoading(false)

	user, err := s.client.Auth.Login(ctx, email, password, remember)
	if err != nil {
		s.storeFailure(err)
		return err
	}
	s.storeUser(user)
	return nil
}

// Register создает аккаунт и открывает сессию.
func (s *AuthStore) Register(ctx context.Context, email, password string, remember bool) error {
	s.setLoading(true)
	defer s.setLoading(false)

	user, err := s.client.Auth.Register(ctx, email, password, remember)
	if err != nil {
		s.storeFailure(err)
		return err
	}
	s.storeUser(user)
	return nil
}

// Logout завершает сессию. Локальное состояние очищается всегда, даже
// если удаленный вызов не удался: очистка не должна зависеть от сети.
func (s *AuthStore) Logout(ctx context.Context) error {
	err := s.client.Auth.Logout(ctx)

	s.mu.Lock()
	s.user = nil
	s.authenticated = false
	s.errMsg = ""
	s.mu.Unlock()
	s.persister.SetAuthenticated(false)

	return err
}

// RefreshUser тихо перечитывает пользователя с сервера, чтобы подтянуть
// изменения статуса подписки. Работает только в аутентифицированном
// состоянии и не трогает видимый флаг загрузки: фоновое обновление не
// должно перерисовывать уже открытые страницы.
func (s *AuthStore) RefreshUser(ctx context.Context) error {
	s.mu.Lock()
	if !s.authenticated {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	user, err := s.client.Auth.Me(ctx)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Kind == KindAuth {
			// Сессия умерла на сервере, локальное состояние сбрасываем.
			s.mu.Lock()
			s.user = nil
			s.authenticated = false
			s.mu.Unlock()
			s.persister.SetAuthenticated(false)
		}
		return err
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return nil
}

// Bootstrap пытается тихо восстановить сессию по сохраненной подсказке.
// Вызывается один раз при старте.
func (s *AuthStore) Bootstrap(ctx context.Context) {
	if !s.persister.WasAuthenticated() {
		return
	}

	s.setLoading(true)
	defer s.setLoading(false)

	user, err := s.client.Auth.Refresh(ctx)
	if err != nil {
		s.persister.SetAuthenticated(false)
		return
	}
	s.storeUser(user)
}

func (s *AuthStore) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *AuthStore) storeUser(user *User) {
	s.mu.Lock()
	s.user = user
	s.authenticated = true
	s.errMsg = ""
	s.mu.Unlock()
	s.persister.SetAuthenticated(true)
}

func (s *AuthStore) storeFailure(err error) {
	msg := err.Error()
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	}

	s.mu.Lock()
	s.user = nil
	s.authenticated = false
	s.errMsg = msg
	s.mu.Unlock()
}
