// Package models содержит доменные структуры платформы: пользователи,
// memberships-подписки, платежи, приложения каталога, журнал аудита и
// уведомления для администраторов. Структуры используются в бизнес‑логике
// и при работе с хранилищем.
package models

import "time"

// Role роль пользователя в системе.
type Role string

const (
	// RoleSubscriber обычный пользователь платформы.
	RoleSubscriber Role = "subscriber"
	// RoleAdmin администратор.
	RoleAdmin Role = "admin"
)

// ParseRole приводит строку из хранилища или токена к роли.
// Неизвестные значения считаются subscriber.
func ParseRole(s string) Role {
	if s == string(RoleAdmin) {
		return RoleAdmin
	}
	return RoleSubscriber
}

// User представляет зарегистрированного пользователя платформы.
type User struct {
	ID                string  // Уникальный идентификатор (UUID)
	Email             string  // Электронная почта (уникальная)
	EmailVerified     bool    // Подтвержден ли email
	PasswordHash      *string // bcrypt-хэш пароля; nil для magic-link-only аккаунтов
	Role              Role
	StripeCustomerID  *string // Идентификатор клиента в Stripe
	MembershipStatus  MembershipStatus
	MembershipTier    MembershipTier
	PriceLocked       bool    // Зафиксирована ли цена за пользователем
	LockedPriceID     *string // Stripe price id зафиксированной цены
	LockedPriceAmount *int    // Зафиксированная цена в центах
	GracePeriodStart  *time.Time
	GracePeriodEnd    *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastLoginAt       *time.Time
	DeletedAt         *time.Time // Мягкое удаление
}

// IsAdmin сообщает, является ли пользователь администратором.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsDeleted сообщает, удален ли аккаунт (soft delete).
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// HasAccess сообщает, есть ли у пользователя доступ к платным приложениям.
func (u *User) HasAccess() bool {
	return u.MembershipStatus.HasAccess()
}

// CreateUser данные для создания нового пользователя.
type CreateUser struct {
	Email        string
	PasswordHash *string
	Role         Role
}

// UserFilter параметры фильтрации списка пользователей в админке.
type UserFilter struct {
	Search string            // Подстрока email
	Status *MembershipStatus // Фильтр по статусу подписки
}
