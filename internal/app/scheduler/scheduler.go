// Package scheduler содержит приложение фоновых задач платформы:
// закрытие истекших grace-периодов и чистку протухших refresh-токенов.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/a8n-tools/platform/internal/config"
	"github.com/a8n-tools/platform/internal/lib/rabbitmq"
	auditservice "github.com/a8n-tools/platform/internal/services/audit"
	schedulerservice "github.com/a8n-tools/platform/internal/services/scheduler"
	"github.com/a8n-tools/platform/internal/storage/repository"
)

// Интервалы фоновых проходов.
const (
	graceSweepInterval   = time.Hour
	tokenCleanupInterval = 12 * time.Hour
)

// App приложение планировщика.
type App struct {
	schedulerService *schedulerservice.Service
	conn             *amqp.Connection
	ch               *amqp.Channel
	db               *repository.Storage
	logger           *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, ch, err := rabbitmq.Connect(cfg.RabbitURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	if err := rabbitmq.SetupQueues(ch, rabbitmq.GetPlatformQueues()); err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ queues: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	auditSvc := auditservice.NewService(db, logger)
	schedulerService := schedulerservice.NewService(db, rabbitmq.NewPublisher(ch), auditSvc, logger)

	return &App{
		schedulerService: schedulerService,
		conn:             conn,
		ch:               ch,
		db:               db,
		logger:           logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", "error", err)
		}
	}
}

// Run запускает фоновые задачи до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	go a.schedulerService.RunGraceSweep(ctx, graceSweepInterval)
	go a.schedulerService.RunTokenCleanup(ctx, tokenCleanupInterval)

	<-ctx.Done()

	a.logger.Info("shutting down scheduler service")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	a.db.DB.Close()

	return nil
}
