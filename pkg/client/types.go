package client

import "time"

// User данные пользователя, какими их отдает сервер.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailVerified    bool       `json:"email_verified"`
	Role             string     `json:"role"`
	MembershipStatus string     `json:"membership_status"`
	MembershipTier   string     `json:"membership_tier"`
	PriceLocked      bool       `json:"price_locked"`
	GracePeriodEnd   *time.Time `json:"grace_period_end,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	LastLoginAt      *time.Time `json:"last_login_at"`
}

// Application приложение каталога с вычисленным признаком доступа.
type Application struct {
	Name               string  `json:"name"`
	Slug               string  `json:"slug"`
	DisplayName        string  `json:"display_name"`
	Description        *string `json:"description,omitempty"`
	IconURL            *string `json:"icon_url,omitempty"`
	Version            *string `json:"version,omitempty"`
	SourceCodeURL      *string `json:"source_code_url,omitempty"`
	IsAccessible       bool    `json:"is_accessible"`
	AccessReason       string  `json:"access_reason,omitempty"`
	MaintenanceMessage *string `json:"maintenance_message,omitempty"`
	LaunchURL          string  `json:"launch_url,omitempty"`
}

// Membership агрегированное состояние подписки.
type Membership struct {
	Status            string     `json:"status"`
	Tier              string     `json:"tier"`
	PriceLocked       bool       `json:"price_locked"`
	LockedPriceAmount *int       `json:"locked_price_amount,omitempty"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	GracePeriodEnd    *time.Time `json:"grace_period_end,omitempty"`
}

// Payment запись истории платежей.
type Payment struct {
	ID            string    `json:"id"`
	Amount        int       `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Session активная сессия пользователя.
type Session struct {
	ID         string     `json:"id"`
	DeviceInfo *string    `json:"device_info"`
	IPAddress  *string    `json:"ip_address"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
}

// Stats сводная статистика платформы.
type Stats struct {
	TotalUsers         int `json:"total_users"`
	ActiveMemberships  int `json:"active_memberships"`
	PastDueMemberships int `json:"past_due_memberships"`
	TotalRevenueCents  int `json:"total_revenue_cents"`
	TotalApplications  int `json:"total_applications"`
}

// AdminMembership подписка в выдаче админки.
type AdminMembership struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Status            string     `json:"status"`
	CurrentPeriodEnd  time.Time  `json:"current_period_end"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	CanceledAt        *time.Time `json:"canceled_at"`
	Amount            int        `json:"amount"`
	Currency          string     `json:"currency"`
	CreatedAt         time.Time  `json:"created_at"`
}

// AuditLog запись журнала аудита.
type AuditLog struct {
	ID            string    `json:"id"`
	ActorID       *string   `json:"actor_id"`
	ActorEmail    *string   `json:"actor_email"`
	ActorIP       *string   `json:"actor_ip"`
	Action        string    `json:"action"`
	ResourceType  *string   `json:"resource_type"`
	ResourceID    *string   `json:"resource_id"`
	IsAdminAction bool      `json:"is_admin_action"`
	Severity      string    `json:"severity"`
	CreatedAt     time.Time `json:"created_at"`
}

// Notification админское уведомление.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	UserID    *string   `json:"user_id"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// AdminApplication приложение каталога со служебными полями.
type AdminApplication struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Slug               string    `json:"slug"`
	DisplayName        string    `json:"display_name"`
	Description        *string   `json:"description"`
	IsActive           bool      `json:"is_active"`
	MaintenanceMode    bool      `json:"maintenance_mode"`
	MaintenanceMessage *string   `json:"maintenance_message"`
	ContainerName      string    `json:"container_name"`
	HealthCheckURL     *string   `json:"health_check_url"`
	Version            *string   `json:"version"`
	SourceCodeURL      *string   `json:"source_code_url"`
	UpdatedAt          time.Time `json:"updated_at"`
}
