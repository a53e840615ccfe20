package application

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/a8n-tools/platform/internal/config"
	"github.com/a8n-tools/platform/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListApplications(ctx context.Context) ([]*models.Application, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Application), args.Error(1)
}

func (m *MockRepository) GetApplicationBySlug(ctx context.Context, slug string) (*models.Application, error) {
	args := m.Called(ctx, slug)
	app, _ := args.Get(0).(*models.Application)
	return app, args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) Invalidate(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newTestService(repo *MockRepository, cache *MockCache) *Service {
	cfg := &config.Config{}
	cfg.App.Domain = "a8n.tools"
	return NewService(repo, cache, newNoopLogger(), cfg)
}

func testApp(slug string, active, maintenance bool) *models.Application {
	return &models.Application{
		Name:            slug,
		Slug:            slug,
		DisplayName:     slug,
		IsActive:        active,
		MaintenanceMode: maintenance,
	}
}

func TestService_List_AccessGating(t *testing.T) {
	apps := []*models.Application{
		testApp("notes", true, false),
		testApp("archive", false, false),
		testApp("editor", true, true),
	}

	tests := []struct {
		name           string
		status         models.MembershipStatus
		wantAccess     map[string]bool
		wantReasons    map[string]string
		wantLaunchURLs map[string]string
	}{
		{
			name:   "active member",
			status: models.MembershipActive,
			wantAccess: map[string]bool{
				"notes": true, "archive": false, "editor": false,
			},
			wantReasons: map[string]string{
				"notes": "", "archive": "not_available", "editor": "under_maintenance",
			},
			wantLaunchURLs: map[string]string{
				"notes": "https://notes.a8n.tools", "archive": "", "editor": "",
			},
		},
		{
			name:   "past due keeps access during grace",
			status: models.MembershipPastDue,
			wantAccess: map[string]bool{
				"notes": true, "archive": false, "editor": false,
			},
		},
		{
			name:   "anonymous",
			status: models.MembershipNone,
			wantAccess: map[string]bool{
				"notes": false, "archive": false, "editor": false,
			},
			wantReasons: map[string]string{
				"notes": "membership_required", "archive": "membership_required", "editor": "membership_required",
			},
		},
		{
			name:   "canceled",
			status: models.MembershipCanceled,
			wantAccess: map[string]bool{
				"notes": false, "archive": false, "editor": false,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			cache := new(MockCache)
			svc := newTestService(repo, cache)

			cache.On("Get", mock.Anything, catalogCacheKey, mock.Anything).Return(false, nil).Once()
			repo.On("ListApplications", mock.Anything).Return(apps, nil).Once()
			cache.On("Set", mock.Anything, catalogCacheKey, apps, catalogCacheTTL).Return(nil).Once()

			views, err := svc.List(context.Background(), tt.status)

			require.NoError(t, err)
			require.Len(t, views, len(apps))

			bySlug := map[string]View{}
			for _, v := range views {
				bySlug[v.Slug] = v
			}
			for slug, want := range tt.wantAccess {
				assert.Equal(t, want, bySlug[slug].IsAccessible, slug)
			}
			for slug, want := range tt.wantReasons {
				assert.Equal(t, want, bySlug[slug].AccessReason, slug)
			}
			for slug, want := range tt.wantLaunchURLs {
				assert.Equal(t, want, bySlug[slug].LaunchURL, slug)
			}
		})
	}
}

func TestService_List_UsesCachedCatalog(t *testing.T) {
	repo := new(MockRepository)
	cache := new(MockCache)
	svc := newTestService(repo, cache)

	cache.On("Get", mock.Anything, catalogCacheKey, mock.Anything).
		Run(func(args mock.Arguments) {
			result := args.Get(2).(*[]*models.Application)
			*result = []*models.Application{testApp("notes", true, false)}
		}).Return(true, nil).Once()

	views, err := svc.List(context.Background(), models.MembershipActive)

	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "notes", views[0].Slug)
	repo.AssertNotCalled(t, "ListApplications", mock.Anything)
}

func TestService_Get(t *testing.T) {
	t.Run("maintenance message only shown under maintenance", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newTestService(repo, new(MockCache))

		msg := "Back soon"
		app := testApp("editor", true, true)
		app.MaintenanceMessage = &msg
		repo.On("GetApplicationBySlug", mock.Anything, "editor").Return(app, nil).Once()

		view, err := svc.Get(context.Background(), "editor", models.MembershipActive)

		require.NoError(t, err)
		assert.False(t, view.IsAccessible)
		require.NotNil(t, view.MaintenanceMessage)
		assert.Equal(t, msg, *view.MaintenanceMessage)
		assert.Empty(t, view.LaunchURL)
	})

	t.Run("unknown slug", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newTestService(repo, new(MockCache))

		repo.On("GetApplicationBySlug", mock.Anything, "ghost").Return(nil, sql.ErrNoRows).Once()

		view, err := svc.Get(context.Background(), "ghost", models.MembershipActive)

		assert.Nil(t, view)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("repository failure", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newTestService(repo, new(MockCache))

		repo.On("GetApplicationBySlug", mock.Anything, "notes").Return(nil, errors.New("db down")).Once()

		_, err := svc.Get(context.Background(), "notes", models.MembershipActive)

		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}
