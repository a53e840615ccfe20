package client

import (
	"context"
	"fmt"
	"net/url"
)

// AuthService вызовы аутентификации.
type AuthService struct {
	c *Client
}

// Login выполняет вход по email и паролю. Сессионные cookies сохраняются
// в jar клиента.
func (s *AuthService) Login(ctx context.Context, email, password string, remember bool) (*User, error) {
	var user User
	err := s.c.post(ctx, "/auth/login", map[string]any{
		"email":    email,
		"password": password,
		"remember": remember,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Register создает аккаунт и сразу открывает сессию.
func (s *AuthService) Register(ctx context.Context, email, password string, remember bool) (*User, error) {
	var user User
	err := s.c.post(ctx, "/auth/register", map[string]any{
		"email":    email,
		"password": password,
		"remember": remember,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout завершает текущую сессию на сервере.
func (s *AuthService) Logout(ctx context.Context) error {
	return s.c.post(ctx, "/auth/logout", nil, nil)
}

// LogoutAll завершает все сессии пользователя.
func (s *AuthService) LogoutAll(ctx context.Context) error {
	return s.c.post(ctx, "/auth/logout-all", nil, nil)
}

// Refresh обменивает refresh cookie на свежий access токен.
func (s *AuthService) Refresh(ctx context.Context) (*User, error) {
	var user User
	if err := s.c.post(ctx, "/auth/refresh", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Me возвращает текущего пользователя.
func (s *AuthService) Me(ctx context.Context) (*User, error) {
	var user User
	if err := s.c.get(ctx, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RequestMagicLink запрашивает одноразовую ссылку для входа. Сервер
// отвечает одинаково, существует ли аккаунт или нет.
func (s *AuthService) RequestMagicLink(ctx context.Context, email string) error {
	return s.c.post(ctx, "/auth/magic-link", map[string]any{"email": email}, nil)
}

// VerifyMagicLink обменивает одноразовый токен на сессию.
func (s *AuthService) VerifyMagicLink(ctx context.Context, token string, remember bool) (*User, error) {
	var user User
	err := s.c.post(ctx, "/auth/magic-link/verify", map[string]any{
		"token":    token,
		"remember": remember,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// RequestPasswordReset запрашивает ссылку для сброса пароля.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	return s.c.post(ctx, "/auth/password-reset", map[string]any{"email": email}, nil)
}

// ConfirmPasswordReset устанавливает новый пароль по одноразовому токену.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	return s.c.post(ctx, "/auth/password-reset/confirm", map[string]any{
		"token":        token,
		"new_password": newPassword,
	}, nil)
}

// ChangePassword меняет пароль текущего пользователя.
func (s *AuthService) ChangePassword(ctx context.Context, current, newPassword string) error {
	return s.c.put(ctx, "/me/password", map[string]any{
		"current_password": current,
		"new_password":     newPassword,
	}, nil)
}

// Sessions возвращает активные сессии пользователя.
func (s *AuthService) Sessions(ctx context.Context) ([]Session, error) {
	var out struct {
		Sessions []Session `json:"sessions"`
	}
	if err := s.c.get(ctx, "/me/sessions", &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// RevokeSession отзывает одну сессию по ее id.
func (s *AuthService) RevokeSession(ctx context.Context, sessionID string) error {
	return s.c.delete(ctx, fmt.Sprintf("/me/sessions/%s", url.PathEscape(sessionID)), nil)
}
