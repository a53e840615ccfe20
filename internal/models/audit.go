package models

import (
	"encoding/json"
	"time"
)

// AuditAction тип события в журнале аудита. Закрытый перечень.
type AuditAction string

const (
	AuditUserLogin               AuditAction = "user_login"
	AuditUserLogout              AuditAction = "user_logout"
	AuditUserRegistered          AuditAction = "user_registered"
	AuditMagicLinkRequested      AuditAction = "magic_link_requested"
	AuditMagicLinkUsed           AuditAction = "magic_link_used"
	AuditPasswordResetRequested  AuditAction = "password_reset_requested"
	AuditPasswordResetCompleted  AuditAction = "password_reset_completed"
	AuditPasswordChanged         AuditAction = "password_changed"
	AuditMembershipCreated       AuditAction = "membership_created"
	AuditMembershipCanceled      AuditAction = "membership_canceled"
	AuditMembershipReactivated   AuditAction = "membership_reactivated"
	AuditPaymentSucceeded        AuditAction = "payment_succeeded"
	AuditPaymentFailed           AuditAction = "payment_failed"
	AuditGracePeriodStarted      AuditAction = "grace_period_started"
	AuditGracePeriodEnded        AuditAction = "grace_period_ended"
	AuditAdminUserImpersonated   AuditAction = "admin_user_impersonated"
	AuditAdminPasswordReset      AuditAction = "admin_password_reset"
	AuditAdminMembershipGranted  AuditAction = "admin_membership_granted"
	AuditAdminMembershipRevoked  AuditAction = "admin_membership_revoked"
	AuditAdminUserDeactivated    AuditAction = "admin_user_deactivated"
	AuditAdminRoleChanged        AuditAction = "admin_role_changed"
	AuditApplicationMaintToggled AuditAction = "application_maintenance_toggled"
)

// IsAdminAction сообщает, является ли событие административным.
func (a AuditAction) IsAdminAction() bool {
	switch a {
	case AuditAdminUserImpersonated, AuditAdminPasswordReset,
		AuditAdminMembershipGranted, AuditAdminMembershipRevoked,
		AuditAdminUserDeactivated, AuditAdminRoleChanged,
		AuditApplicationMaintToggled:
		return true
	}
	return false
}

// AuditSeverity уровень важности события.
type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "info"
	SeverityWarning  AuditSeverity = "warning"
	SeverityError    AuditSeverity = "error"
	SeverityCritical AuditSeverity = "critical"
)

// AuditLog запись журнала аудита. Только добавление.
type AuditLog struct {
	ID            string
	ActorID       *string
	ActorEmail    *string
	ActorRole     *string
	ActorIP       *string
	Action        AuditAction
	ResourceType  *string
	ResourceID    *string
	OldValues     json.RawMessage
	NewValues     json.RawMessage
	Metadata      json.RawMessage
	IsAdminAction bool
	Severity      AuditSeverity
	CreatedAt     time.Time
}

// CreateAuditLog данные для записи события аудита. Заполняется через
// цепочку With*-методов, как собирается контекст события.
type CreateAuditLog struct {
	ActorID      *string
	ActorEmail   *string
	ActorRole    *string
	ActorIP      *string
	Action       AuditAction
	ResourceType *string
	ResourceID   *string
	OldValues    json.RawMessage
	NewValues    json.RawMessage
	Metadata     json.RawMessage
	Severity     AuditSeverity
}

// NewAuditEntry создает запись события с уровнем info.
func NewAuditEntry(action AuditAction) CreateAuditLog {
	return CreateAuditLog{Action: action, Severity: SeverityInfo}
}

// WithActor добавляет информацию об инициаторе события.
func (c CreateAuditLog) WithActor(id, email string, role Role) CreateAuditLog {
	roleStr := string(role)
	c.ActorID, c.ActorEmail, c.ActorRole = &id, &email, &roleStr
	return c
}

// WithIP добавляет IP-адрес инициатора.
func (c CreateAuditLog) WithIP(ip string) CreateAuditLog {
	if ip != "" {
		c.ActorIP = &ip
	}
	return c
}

// WithResource добавляет затронутый ресурс.
func (c CreateAuditLog) WithResource(resourceType, resourceID string) CreateAuditLog {
	c.ResourceType, c.ResourceID = &resourceType, &resourceID
	return c
}

// WithSeverity переопределяет уровень важности.
func (c CreateAuditLog) WithSeverity(s AuditSeverity) CreateAuditLog {
	c.Severity = s
	return c
}

// WithMetadata добавляет произвольные метаданные события.
func (c CreateAuditLog) WithMetadata(meta map[string]any) CreateAuditLog {
	raw, err := json.Marshal(meta)
	if err == nil {
		c.Metadata = raw
	}
	return c
}

// AuditLogFilter параметры фильтрации журнала аудита.
type AuditLogFilter struct {
	ActorID   *string
	Action    *AuditAction
	AdminOnly bool
}
