// Package sender содержит приложение-воркер, которое читает очереди
// брокера: отправляет письма по SMTP и сохраняет админские уведомления.
package sender

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/a8n-tools/platform/internal/config"
	"github.com/a8n-tools/platform/internal/lib/rabbitmq"
	"github.com/a8n-tools/platform/internal/lib/smtp"
	senderservice "github.com/a8n-tools/platform/internal/services/sender"
	"github.com/a8n-tools/platform/internal/storage/repository"
)

// App приложение-воркер очередей.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	db            *repository.Storage
	logger        *slog.Logger
}

// New создает новый экземпляр App.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
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

	newTransport := smtp.NewTransport(cfg.SMTP, logger)
	senderService := senderservice.NewService(newTransport, db, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		db:            db,
		logger:        logger,
	}, nil
}

// Run подписывается на очереди и обрабатывает сообщения до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	consumer := rabbitmq.NewConsumer(a.ch, a.logger, 10)

	err := consumer.Consume(ctx, "email.outgoing", a.senderService.HandleEmailMessage)
	if err != nil {
		a.logger.Error("failed to start email.outgoing consumer", slog.Any("err", err))
		return err
	}

	err = consumer.Consume(ctx, "admin.notifications", func(body []byte) error {
		return a.senderService.HandleNotificationEvent(ctx, body)
	})
	if err != nil {
		a.logger.Error("failed to start admin.notifications consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	a.db.DB.Close()

	return nil
}
