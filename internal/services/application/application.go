// Package application содержит логику каталога приложений: выдача списка
// с решением о доступе для конкретного пользователя и ссылки запуска.
package application

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/a8n-tools/platform/internal/config"
	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/models"
	"github.com/a8n-tools/platform/pkg/access"
)

// ErrNotFound приложение с таким slug отсутствует в каталоге.
var ErrNotFound = errors.New("application not found")

const catalogCacheKey = "applications:catalog"
const catalogCacheTTL = 5 * time.Minute

// Repository определяет методы хранилища каталога.
type Repository interface {
	ListApplications(ctx context.Context) ([]*models.Application, error)
	GetApplicationBySlug(ctx context.Context, slug string) (*models.Application, error)
}

// Cache описывает методы кэширования каталога.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// View приложение каталога глазами конкретного пользователя.
type View struct {
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

// Service реализует бизнес-логику каталога.
type Service struct {
	repo      Repository
	cache     Cache
	log       *slog.Logger
	appDomain string
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, cache Cache, log *slog.Logger, cfg *config.Config) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		log:       log,
		appDomain: cfg.App.Domain,
	}
}

// List возвращает каталог приложений с решением о доступе для статуса
// подписки status. Для анонимных запросов передается пустой статус.
func (s *Service) List(ctx context.Context, status models.MembershipStatus) ([]View, error) {
	apps, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(apps))
	for _, app := range apps {
		views = append(views, s.view(app, status))
	}
	return views, nil
}

// Get возвращает одно приложение с решением о доступе.
func (s *Service) Get(ctx context.Context, slug string, status models.MembershipStatus) (*View, error) {
	app, err := s.repo.GetApplicationBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	v := s.view(app, status)
	return &v, nil
}

// InvalidateCatalog сбрасывает кэш каталога. Вызывается после изменений
// из админки.
func (s *Service) InvalidateCatalog(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, catalogCacheKey); err != nil {
		s.log.Warn("failed to invalidate catalog cache", sl.Err(err))
	}
}

func (s *Service) catalog(ctx context.Context) ([]*models.Application, error) {
	var cached []*models.Application
	if found, err := s.cache.Get(ctx, catalogCacheKey, &cached); err == nil && found {
		return cached, nil
	}

	apps, err := s.repo.ListApplications(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, catalogCacheKey, apps, catalogCacheTTL); err != nil {
		s.log.Warn("failed to cache catalog", sl.Err(err))
	}
	return apps, nil
}

// view вычисляет решение о доступе. Ссылка запуска выдается только при
// наличии доступа.
func (s *Service) view(app *models.Application, status models.MembershipStatus) View {
	decision := access.Check(access.Status(status), app.IsActive, app.MaintenanceMode)

	v := View{
		Name:          app.Name,
		Slug:          app.Slug,
		DisplayName:   app.DisplayName,
		Description:   app.Description,
		IconURL:       app.IconURL,
		Version:       app.Version,
		SourceCodeURL: app.SourceCodeURL,
		IsAccessible:  decision.HasAccess,
		AccessReason:  string(decision.Reason),
	}
	if decision.Reason == access.ReasonUnderMaintenance {
		v.MaintenanceMessage = app.MaintenanceMessage
	}
	if decision.HasAccess {
		v.LaunchURL = fmt.Sprintf("https://%s.%s", app.Slug, s.appDomain)
	}
	return v
}
