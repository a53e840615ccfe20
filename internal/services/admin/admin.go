// Package admin содержит бизнес-логику административной консоли:
// статистика, управление пользователями, подписками, каталогом,
// журнал аудита и уведомления.
package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/a8n-tools/platform/internal/lib/jwt"
	"github.com/a8n-tools/platform/internal/lib/password"
	"github.com/a8n-tools/platform/internal/lib/rabbitmq"
	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/models"
	"github.com/a8n-tools/platform/internal/services/audit"
	"github.com/a8n-tools/platform/internal/storage/repository"
)

// Ошибки уровня бизнес-логики.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrSelfAction   = errors.New("action cannot target the acting admin")
	ErrWeakPassword = errors.New("password does not meet the policy")
)

const statsCacheKey = "admin:stats"
const statsCacheTTL = time.Minute

// Repository определяет методы хранилища, нужные админке.
type Repository interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	ListUsers(ctx context.Context, filter models.UserFilter, limit, offset int) ([]*models.User, error)
	CountUsers(ctx context.Context, filter models.UserFilter) (int, error)
	CountUsersByStatus(ctx context.Context, status models.MembershipStatus) (int, error)
	SoftDeleteUser(ctx context.Context, userID string) (int, error)
	UpdateUserRole(ctx context.Context, userID string, role models.Role) (int, error)
	UpdateMembershipState(ctx context.Context, userID string, state repository.MembershipState) error
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	RevokeAllRefreshTokens(ctx context.Context, userID string) (int, error)

	ListMemberships(ctx context.Context, limit, offset int) ([]*models.Membership, error)
	CountMemberships(ctx context.Context) (int, error)

	ListApplications(ctx context.Context) ([]*models.Application, error)
	GetApplicationBySlug(ctx context.Context, slug string) (*models.Application, error)
	UpdateApplication(ctx context.Context, slug string, upd models.UpdateApplication) (int, error)

	ListNotifications(ctx context.Context, unreadOnly bool, limit, offset int) ([]*models.AdminNotification, error)
	CountNotifications(ctx context.Context, unreadOnly bool) (int, error)
	MarkNotificationRead(ctx context.Context, id string) (int, error)
	MarkAllNotificationsRead(ctx context.Context) (int, error)

	SumRevenue(ctx context.Context) (int, error)
	CountApplications(ctx context.Context) (int, error)
}

// Cache описывает методы кэширования.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Publisher публикует сообщения в брокер.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// Stats сводная статистика платформы.
type Stats struct {
	TotalUsers         int `json:"total_users"`
	ActiveMemberships  int `json:"active_memberships"`
	PastDueMemberships int `json:"past_due_memberships"`
	TotalRevenueCents  int `json:"total_revenue_cents"`
	TotalApplications  int `json:"total_applications"`
}

// Actor администратор, выполняющий операцию.
type Actor struct {
	ID    string
	Email string
	Role  models.Role
	IP    string
}

// Service реализует бизнес-логику админки.
type Service struct {
	repo      Repository
	cache     Cache
	publisher Publisher
	audit     *audit.Service
	maker     jwt.Maker
	log       *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, cache Cache, publisher Publisher, auditSvc *audit.Service, maker jwt.Maker, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		audit:     auditSvc,
		maker:     maker,
		log:       log,
	}
}

// Stats возвращает сводную статистику. Результат кэшируется на минуту.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var cached Stats
	if found, err := s.cache.Get(ctx, statsCacheKey, &cached); err == nil && found {
		return &cached, nil
	}

	totalUsers, err := s.repo.CountUsers(ctx, models.UserFilter{})
	if err != nil {
		return nil, err
	}
	active, err := s.repo.CountUsersByStatus(ctx, models.MembershipActive)
	if err != nil {
		return nil, err
	}
	pastDue, err := s.repo.CountUsersByStatus(ctx, models.MembershipPastDue)
	if err != nil {
		return nil, err
	}
	revenue, err := s.repo.SumRevenue(ctx)
	if err != nil {
		return nil, err
	}
	apps, err := s.repo.CountApplications(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalUsers:         totalUsers,
		ActiveMemberships:  active,
		PastDueMemberships: pastDue,
		TotalRevenueCents:  revenue,
		TotalApplications:  apps,
	}
	if err := s.cache.Set(ctx, statsCacheKey, stats, statsCacheTTL); err != nil {
		s.log.Warn("failed to cache admin stats", sl.Err(err))
	}
	return stats, nil
}

// ListUsers возвращает страницу пользователей под фильтром.
func (s *Service) ListUsers(ctx context.Context, filter models.UserFilter, limit, offset int) ([]*models.User, int, error) {
	users, err := s.repo.ListUsers(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountUsers(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// GetUser возвращает пользователя по ID.
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// DeleteUser мягко удаляет аккаунт и отзывает все его сессии.
func (s *Service) DeleteUser(ctx context.Context, actor Actor, userID string) error {
	if actor.ID == userID {
		return ErrSelfAction
	}
	rows, err := s.repo.SoftDeleteUser(ctx, userID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	if _, err := s.repo.RevokeAllRefreshTokens(ctx, userID); err != nil {
		s.log.Warn("failed to revoke sessions of deleted user", sl.Err(err))
	}

	s.audit.Record(ctx, models.NewAuditEntry(models.AuditAdminUserDeactivated).
		WithActor(actor.ID, actor.Email, actor.Role).
		WithIP(actor.IP).
		WithResource("user", userID).
		WithSeverity(models.SeverityWarning))
	return nil
}

// ChangeRole изменяет роль пользователя.
func (s *Service) ChangeRole(ctx context.Context, actor Actor, userID string, role models.Role) error {
	if actor.ID == userID {
		return ErrSelfAction
	}
	rows, err := s.repo.UpdateUserRole(ctx, userID, role)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	s.audit.Record(ctx, models.NewAuditEntry(models.AuditAdminRoleChanged).
		WithActor(actor.ID, actor.Email, actor.Role).
		WithIP(actor.IP).
		WithResource("user", userID).
		WithMetadata(map[string]any{"new_role": string(role)}).
		WithSeverity(models.SeverityWarning))
	return nil
}

// ResetUserPassword устанавливает пользователю временный пароль и
// отзывает его сессии.
func (s *Service) ResetUserPassword(ctx context.Context, actor Actor, userID, newPassword string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := password.Validate(newPassword, user.Email); err != nil {
		return fmt.Errorf("%w: %w", ErrWeakPassword, err)
	}
	hashed, err := password.GetHash(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePasswordHash(ctx, userID, hashed); err != nil {
		return err
	}
	if _, err := s.repo.RevokeAllRefreshTokens(ctx, userID); err != nil {
		s.log.Warn("failed to revoke sessions after admin reset", sl.Err(err))
	}

	s.audit.Record(ctx, models.NewAuditEntry(models.AuditAdminPasswordReset).
		WithActor(actor.ID, actor.Email, actor.Role).
		WithIP(actor.IP).
		WithResource("user", userID).
		WithSeverity(models.SeverityWarning))
	return nil
}

// Impersonate выпускает access токен от имени целевого пользователя.
// Событие пишется в аудит с повышенной важностью.
func (s *Service) Impersonate(ctx context.Context, actor Actor, userID string) (string, error) {
	if actor.ID == userID {
		return "", ErrSelfAction
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}

	token, err := s.maker.GenerateToken(user)
	if err != nil {
		return "", err
	}

	s.audit.Record(ctx, models.NewAuditEntry(models.AuditAdminUserImpersonated).
		WithActor(actor.ID, actor.Email, actor.Role).
		WithIP(actor.IP).
		WithResource("user", userID).
		WithSeverity(models.SeverityWarning))
	return token, nil
}

// ListMemberships возвращает страницу подписок.
func (s *Service) ListMemberships(ctx context.Context, limit, offset int) ([]*models.Membership, int, error) {
	memberships, err := s.repo.ListMemberships(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountMemberships(ctx)
	if err != nil {
		return nil, 0, err
	}
	return memberships, total, nil
}

// GrantMembership вручную активирует подписку пользователя без оплаты.
func (s *Service) GrantMembership(ctx context.Context, actor Actor, userID string, tier models.MembershipTier) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateMembershipState(ctx, userID, repository.MembershipState{
		Status:            models.MembershipActive,
		Tier:              tier,
		PriceLocked:       user.PriceLocked,
		LockedPriceID:     user.LockedPriceID,
		LockedPriceAmount: user.LockedPriceAmount,
	}); err != nil {
		return err
	}
	s.cacheInvalidateStats(ctx)

	s.audit.Record(ctx, models.NewAuditEntry(models.AuditAdminMembershipGranted).
		WithActor(actor.ID, actor.Email, actor.Role).
		WithIP(actor.IP).
		WithResource("user", userID).
		WithMetadata(map[string]any{"tier": string(tier)}).
		WithSeverity(models.SeverityWarning))
	return nil
}

// RevokeMembership вручную отключает подписку пользователя.
func (s *Service) RevokeMembership(ctx context.Context, actor Actor, userID string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateMembershipState(ctx, userID, repository.MembershipState{
		Status:            models.MembershipCanceled,
		Tier:              user.MembershipTier,
		PriceLocked:       user.PriceLocked,
		LockedPriceID:     user.LockedPriceID,
		LockedPriceAmount: user.LockedPriceAmount,
	}); err != nil {
		return err
	}
	s.cacheInvalidateStats(ctx)

	s.audit.Record(ctx, models.NewAuditEntry(models.AuditAdminMembershipRevoked).
		WithActor(actor.ID, actor.Email, actor.Role).
		WithIP(actor.IP).
		WithResource("user", userID).
		WithSeverity(models.SeverityWarning))

	if err := s.publisher.Publish(rabbitmq.RoutingKeyNotification, models.NotificationEvent{
		Type:    models.NotificationMembershipRevoked,
		Title:   "Membership revoked",
		Message: fmt.Sprintf("Membership of %s was revoked by %s", user.Email, actor.Email),
		UserID:  &user.ID,
	}); err != nil {
		s.log.Error("failed to publish membership_revoked notification", sl.Err(err))
	}
	return nil
}

// ListApplications возвращает весь каталог для админки.
func (s *Service) ListApplications(ctx context.Context) ([]*models.Application, error) {
	return s.repo.ListApplications(ctx)
}

// UpdateApplication применяет частичное обновление приложения.
func (s *Service) UpdateApplication(ctx context.Context, actor Actor, slug string, upd models.UpdateApplication) (*models.Application, error) {
	rows, err := s.repo.UpdateApplication(ctx, slug, upd)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, sql.ErrNoRows
	}
	app, err := s.repo.GetApplicationBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if upd.MaintenanceMode != nil {
		s.audit.Record(ctx, models.NewAuditEntry(models.AuditApplicationMaintToggled).
			WithActor(actor.ID, actor.Email, actor.Role).
			WithIP(actor.IP).
			WithResource("application", slug).
			WithMetadata(map[string]any{"maintenance_mode": *upd.MaintenanceMode}))
	}
	return app, nil
}

// ListNotifications возвращает страницу админских уведомлений.
func (s *Service) ListNotifications(ctx context.Context, unreadOnly bool, limit, offset int) ([]*models.AdminNotification, int, error) {
	items, err := s.repo.ListNotifications(ctx, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountNotifications(ctx, unreadOnly)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// MarkNotificationRead помечает уведомление прочитанным.
func (s *Service) MarkNotificationRead(ctx context.Context, id string) error {
	rows, err := s.repo.MarkNotificationRead(ctx, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkAllNotificationsRead помечает все уведомления прочитанными.
func (s *Service) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	return s.repo.MarkAllNotificationsRead(ctx)
}

// ListAuditLogs проксирует чтение журнала аудита.
func (s *Service) ListAuditLogs(ctx context.Context, filter models.AuditLogFilter, limit, offset int) ([]*models.AuditLog, int, error) {
	return s.audit.List(ctx, filter, limit, offset)
}

func (s *Service) cacheInvalidateStats(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, statsCacheKey); err != nil {
		s.log.Warn("failed to invalidate stats cache", sl.Err(err))
	}
}
