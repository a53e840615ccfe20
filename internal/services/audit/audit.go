// Package audit содержит бизнес-логику журнала аудита. Запись событий
// не должна ломать основную операцию: ошибки логируются и глотаются.
package audit

import (
	"context"
	"log/slog"

	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/models"
)

// Repository определяет методы хранилища журнала аудита.
type Repository interface {
	// CreateAuditLog записывает событие и возвращает его ID.
	CreateAuditLog(ctx context.Context, entry models.CreateAuditLog) (string, error)
	// ListAuditLogs возвращает страницу журнала под фильтром.
	ListAuditLogs(ctx context.Context, filter models.AuditLogFilter, limit, offset int) ([]*models.AuditLog, error)
	// CountAuditLogs возвращает число записей под фильтром.
	CountAuditLogs(ctx context.Context, filter models.AuditLogFilter) (int, error)
}

// Service реализует запись и чтение журнала аудита.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Record записывает событие аудита. Ошибка записи не возвращается наверх,
// основную операцию она не отменяет.
func (s *Service) Record(ctx context.Context, entry models.CreateAuditLog) {
	if _, err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.log.Error("failed to write audit log",
			slog.String("action", string(entry.Action)), sl.Err(err))
	}
}

// List возвращает страницу журнала аудита и общее число записей.
func (s *Service) List(ctx context.Context, filter models.AuditLogFilter, limit, offset int) ([]*models.AuditLog, int, error) {
	logs, err := s.repo.ListAuditLogs(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountAuditLogs(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
