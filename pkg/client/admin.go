package client

import (
	"context"
	"fmt"
	"net/url"
)

// AdminService вызовы административной консоли. Требуют роли admin.
type AdminService struct {
	c *Client
}

// Stats возвращает сводную статистику платформы.
func (s *AdminService) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := s.c.get(ctx, "/admin/stats", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// UserFilter фильтр списка пользователей.
type UserFilter struct {
	Search string
	Status string
}

// Users возвращает страницу пользователей.
func (s *AdminService) Users(ctx context.Context, filter UserFilter, page, pageSize int) (Page[User], error) {
	q := url.Values{}
	q.Set("page", fmt.Sprint(floorPage(page)))
	q.Set("page_size", fmt.Sprint(pageSize))
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}

	var out Page[User]
	if err := s.c.get(ctx, "/admin/users?"+q.Encode(), &out); err != nil {
		return Page[User]{}, err
	}
	return out, nil
}

// User возвращает данные пользователя по id.
func (s *AdminService) User(ctx context.Context, userID string) (*User, error) {
	var u User
	if err := s.c.get(ctx, "/admin/users/"+url.PathEscape(userID), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser мягко удаляет пользователя и отзывает его сессии.
func (s *AdminService) DeleteUser(ctx context.Context, userID string) error {
	return s.c.delete(ctx, "/admin/users/"+url.PathEscape(userID), nil)
}

// ChangeRole назначает пользователю роль subscriber или admin.
func (s *AdminService) ChangeRole(ctx context.Context, userID, role string) error {
	return s.c.put(ctx, "/admin/users/"+url.PathEscape(userID)+"/role", map[string]any{"role": role}, nil)
}

// ResetPassword устанавливает пользователю новый пароль.
func (s *AdminService) ResetPassword(ctx context.Context, userID, newPassword string) error {
	return s.c.put(ctx, "/admin/users/"+url.PathEscape(userID)+"/password", map[string]any{"new_password": newPassword}, nil)
}

// Impersonate выпускает access токен от имени целевого пользователя.
// Токен можно передать в SetAccessToken отдельного клиента.
func (s *AdminService) Impersonate(ctx context.Context, userID string) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := s.c.post(ctx, "/admin/users/"+url.PathEscape(userID)+"/impersonate", nil, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// Memberships возвращает страницу подписок.
func (s *AdminService) Memberships(ctx context.Context, page, pageSize int) (Page[AdminMembership], error) {
	var out Page[AdminMembership]
	path := fmt.Sprintf("/admin/memberships?page=%d&page_size=%d", floorPage(page), pageSize)
	if err := s.c.get(ctx, path, &out); err != nil {
		return Page[AdminMembership]{}, err
	}
	return out, nil
}

// GrantMembership вручную выдает пользователю активную подписку.
func (s *AdminService) GrantMembership(ctx context.Context, userID, tier string) error {
	return s.c.post(ctx, "/admin/users/"+url.PathEscape(userID)+"/membership", map[string]any{"tier": tier}, nil)
}

// RevokeMembership сбрасывает подписку пользователя.
func (s *AdminService) RevokeMembership(ctx context.Context, userID string) error {
	return s.c.delete(ctx, "/admin/users/"+url.PathEscape(userID)+"/membership", nil)
}

// Applications возвращает каталог со служебными полями.
func (s *AdminService) Applications(ctx context.Context) ([]AdminApplication, error) {
	var out struct {
		Applications []AdminApplication `json:"applications"`
	}
	if err := s.c.get(ctx, "/admin/applications", &out); err != nil {
		return nil, err
	}
	return out.Applications, nil
}

// ApplicationUpdate частичное обновление приложения.
type ApplicationUpdate struct {
	IsActive           *bool   `json:"is_active,omitempty"`
	MaintenanceMode    *bool   `json:"maintenance_mode,omitempty"`
	MaintenanceMessage *string `json:"maintenance_message,omitempty"`
	Version            *string `json:"version,omitempty"`
}

// UpdateApplication меняет служебные поля приложения.
func (s *AdminService) UpdateApplication(ctx context.Context, slug string, upd ApplicationUpdate) (*AdminApplication, error) {
	var app AdminApplication
	if err := s.c.put(ctx, "/admin/applications/"+url.PathEscape(slug), upd, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// AuditLogFilter фильтр журнала аудита.
type AuditLogFilter struct {
	ActorID   string
	Action    string
	AdminOnly bool
}

// AuditLogs возвращает страницу журнала аудита.
func (s *AdminService) AuditLogs(ctx context.Context, filter AuditLogFilter, page, pageSize int) (Page[AuditLog], error) {
	q := url.Values{}
	q.Set("page", fmt.Sprint(floorPage(page)))
	q.Set("page_size", fmt.Sprint(pageSize))
	if filter.ActorID != "" {
		q.Set("actor_id", filter.ActorID)
	}
	if filter.Action != "" {
		q.Set("action", filter.Action)
	}
	if filter.AdminOnly {
		q.Set("admin_only", "true")
	}

	var out Page[AuditLog]
	if err := s.c.get(ctx, "/admin/audit-logs?"+q.Encode(), &out); err != nil {
		return Page[AuditLog]{}, err
	}
	return out, nil
}

// Notifications возвращает страницу уведомлений.
func (s *AdminService) Notifications(ctx context.Context, unreadOnly bool, page, pageSize int) (Page[Notification], error) {
	q := url.Values{}
	q.Set("page", fmt.Sprint(floorPage(page)))
	q.Set("page_size", fmt.Sprint(pageSize))
	if unreadOnly {
		q.Set("unread", "true")
	}

	var out Page[Notification]
	if err := s.c.get(ctx, "/admin/notifications?"+q.Encode(), &out); err != nil {
		return Page[Notification]{}, err
	}
	return out, nil
}

// MarkNotificationRead помечает уведомление прочитанным.
func (s *AdminService) MarkNotificationRead(ctx context.Context, id string) error {
	return s.c.post(ctx, "/admin/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

// MarkAllNotificationsRead помечает все уведомления прочитанными.
func (s *AdminService) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	var out struct {
		MarkedRead int `json:"marked_read"`
	}
	if err := s.c.post(ctx, "/admin/notifications/read-all", nil, &out); err != nil {
		return 0, err
	}
	return out.MarkedRead, nil
}
