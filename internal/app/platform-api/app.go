// Package platformapi собирает основное HTTP-приложение платформы:
// аутентификацию, каталог приложений, подписки, Stripe webhook и админку.
package platformapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/a8n-tools/platform/internal/billing"
	"github.com/a8n-tools/platform/internal/cache"
	"github.com/a8n-tools/platform/internal/config"
	libjwt "github.com/a8n-tools/platform/internal/lib/jwt"
	"github.com/a8n-tools/platform/internal/lib/rabbitmq"
	"github.com/a8n-tools/platform/internal/migrations"
	adminservice "github.com/a8n-tools/platform/internal/services/admin"
	applicationservice "github.com/a8n-tools/platform/internal/services/application"
	auditservice "github.com/a8n-tools/platform/internal/services/audit"
	authservice "github.com/a8n-tools/platform/internal/services/auth"
	membershipservice "github.com/a8n-tools/platform/internal/services/membership"
	"github.com/a8n-tools/platform/internal/storage/repository"
)

// App основное HTTP-приложение.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New инициализирует хранилище, брокер, кэш и собирает роутер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, ch, err := rabbitmq.Connect(cfg.RabbitURL)
	if err != nil {
		return nil, err
	}
	if err := rabbitmq.SetupQueues(ch, rabbitmq.GetPlatformQueues()); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	publisher := rabbitmq.NewPublisher(ch)

	jwtMaker := libjwt.NewJWTMaker(cfg.JWTToken.JWTSecretKey, cfg.JWTToken.AccessTTL, cfg.JWTToken.Issuer)
	billingClient := billing.New(cfg.Stripe)

	auditSvc := auditservice.NewService(db, logger)
	authSvc := authservice.NewService(db, jwtMaker, publisher, auditSvc, logger, cfg)
	membershipSvc := membershipservice.NewService(db, billingClient, publisher, auditSvc, logger, cfg)
	applicationSvc := applicationservice.NewService(db, cacheRedis, logger, cfg)
	adminSvc := adminservice.NewService(db, cacheRedis, publisher, auditSvc, jwtMaker, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, jwtMaker, Services{
		Auth:        authSvc,
		Membership:  membershipSvc,
		Application: applicationSvc,
		Admin:       adminSvc,
		Billing:     billingClient,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if closeErr := a.ch.Close(); closeErr != nil {
			a.logger.Error("failed to close channel", slog.Any("err", closeErr))
		}
		if closeErr := a.conn.Close(); closeErr != nil {
			a.logger.Error("failed to close connection", slog.Any("err", closeErr))
		}
		a.db.DB.Close()
		return err
	}
}

// Services сервисы, используемые роутером.
type Services struct {
	Auth        *authservice.Service
	Membership  *membershipservice.Service
	Application *applicationservice.Service
	Admin       *adminservice.Service
	Billing     *billing.Client
}
