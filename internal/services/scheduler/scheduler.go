// Package scheduler содержит фоновые задачи платформы: закрытие истекших
// grace-периодов и чистку устаревших refresh-сессий.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/a8n-tools/platform/internal/lib/rabbitmq"
	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/models"
	"github.com/a8n-tools/platform/internal/services/audit"
	"github.com/a8n-tools/platform/internal/storage/repository"
)

// Repository определяет методы хранилища для фоновых задач.
type Repository interface {
	ListUsersWithExpiredGrace(ctx context.Context, now time.Time) ([]*models.User, error)
	UpdateMembershipState(ctx context.Context, userID string, state repository.MembershipState) error
	DeleteExpiredRefreshTokens(ctx context.Context) (int, error)
}

// Publisher публикует сообщения в брокер.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// Service реализует фоновые задачи.
type Service struct {
	repo      Repository
	publisher Publisher
	audit     *audit.Service
	log       *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, publisher Publisher, auditSvc *audit.Service, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		audit:     auditSvc,
		log:       log,
	}
}

// RunGraceSweep запускает периодическое закрытие grace-периодов.
// Первый проход выполняется сразу.
func (s *Service) RunGraceSweep(ctx context.Context, interval time.Duration) {
	s.sweepExpiredGrace(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepExpiredGrace(ctx)
		}
	}
}

// RunTokenCleanup запускает периодическую чистку устаревших сессий.
func (s *Service) RunTokenCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.repo.DeleteExpiredRefreshTokens(ctx)
			if err != nil {
				s.log.Error("failed to delete expired refresh tokens", sl.Err(err))
				continue
			}
			if deleted > 0 {
				s.log.Info("deleted expired refresh tokens", slog.Int("count", deleted))
			}
		}
	}
}

// sweepExpiredGrace переводит пользователей с истекшим grace-периодом
// в canceled и уведомляет администраторов.
func (s *Service) sweepExpiredGrace(ctx context.Context) {
	s.log.Info("starting grace period sweep")

	users, err := s.repo.ListUsersWithExpiredGrace(ctx, time.Now().UTC())
	if err != nil {
		s.log.Error("failed to list users with expired grace", sl.Err(err))
		return
	}
	if len(users) == 0 {
		s.log.Info("no expired grace periods found")
		return
	}
	s.log.Info("found expired grace periods", slog.Int("count", len(users)))

	for _, user := range users {
		if err := s.repo.UpdateMembershipState(ctx, user.ID, repository.MembershipState{
			Status:            models.MembershipCanceled,
			Tier:              user.MembershipTier,
			PriceLocked:       user.PriceLocked,
			LockedPriceID:     user.LockedPriceID,
			LockedPriceAmount: user.LockedPriceAmount,
		}); err != nil {
			s.log.Error("failed to cancel membership after grace",
				slog.String("user_id", user.ID), sl.Err(err))
			continue
		}

		s.audit.Record(ctx, models.NewAuditEntry(models.AuditGracePeriodEnded).
			WithActor(user.ID, user.Email, user.Role).
			WithSeverity(models.SeverityWarning))

		if err := s.publisher.Publish(rabbitmq.RoutingKeyNotification, models.NotificationEvent{
			Type:    models.NotificationGraceExpired,
			Title:   "Grace period expired",
			Message: fmt.Sprintf("Membership of %s was canceled after the grace period expired", user.Email),
			UserID:  &user.ID,
		}); err != nil {
			s.log.Error("failed to publish grace_period_expired notification", sl.Err(err))
		}

		if err := s.publisher.Publish(rabbitmq.RoutingKeyEmail, models.EmailMessage{
			To:      user.Email,
			Subject: "Your membership has ended",
			Body:    "Your payment grace period has expired and your membership was canceled. Subscribe again at any time to restore access.",
		}); err != nil {
			s.log.Error("failed to publish grace expiry email", sl.Err(err))
		}
	}
}
