package models

import (
	"encoding/json"
	"time"
)

// NotificationType тип уведомления для администраторов.
type NotificationType string

const (
	NotificationPaymentFailed     NotificationType = "payment_failed"
	NotificationGraceExpired      NotificationType = "grace_period_expired"
	NotificationNewRegistration   NotificationType = "new_registration"
	NotificationMembershipRevoked NotificationType = "membership_revoked"
)

// AdminNotification уведомление в админ-панели. Клиент их только читает
// и помечает прочитанными.
type AdminNotification struct {
	ID        string
	Type      NotificationType
	Title     string
	Message   string
	Metadata  json.RawMessage
	UserID    *string
	IsRead    bool
	CreatedAt time.Time
}

// CreateAdminNotification данные для создания уведомления.
type CreateAdminNotification struct {
	Type     NotificationType
	Title    string
	Message  string
	Metadata json.RawMessage
	UserID   *string
}
