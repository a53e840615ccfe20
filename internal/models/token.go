package models

import "time"

// RefreshToken сессия пользователя. Хранится только sha256-хэш токена.
type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	DeviceInfo *string
	IPAddress  *string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// CreateRefreshToken данные для сохранения новой сессии.
type CreateRefreshToken struct {
	UserID     string
	TokenHash  string
	DeviceInfo *string
	IPAddress  *string
	ExpiresAt  time.Time
}

// OneTimeToken одноразовый токен magic-ссылки или сброса пароля.
// Хранится только хэш; после использования выставляется UsedAt.
type OneTimeToken struct {
	ID        string
	UserEmail string
	TokenHash string
	Purpose   TokenPurpose
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// TokenPurpose назначение одноразового токена.
type TokenPurpose string

const (
	// PurposeMagicLink вход по magic-ссылке.
	PurposeMagicLink TokenPurpose = "magic_link"
	// PurposePasswordReset сброс пароля.
	PurposePasswordReset TokenPurpose = "password_reset"
)
