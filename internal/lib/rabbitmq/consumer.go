package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"
)

// Consumer читает очередь брокера и передает тело каждого сообщения
// обработчику. Обработка идет параллельно, не более workers сообщений
// одновременно; prefetch канала выставляется в то же значение. При
// ошибке обработчика сообщение возвращается в очередь.
type Consumer struct {
	ch      *amqp.Channel
	log     *slog.Logger
	workers int
}

// NewConsumer создает Consumer поверх открытого канала.
func NewConsumer(ch *amqp.Channel, log *slog.Logger, workers int) *Consumer {
	return &Consumer{ch: ch, log: log, workers: workers}
}

// Consume подписывается на очередь queueName и обрабатывает сообщения
// до отмены контекста. Возвращается сразу после успешной подписки.
func (c *Consumer) Consume(ctx context.Context, queueName string, handler func([]byte) error) error {
	const op = "rabbitmq.Consume"

	if err := c.ch.Qos(c.workers, 0, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	delivery, err := c.ch.Consume(
		queueName,
		"platform-"+queueName,
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sem := make(chan struct{}, c.workers)
	go func() {
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				sem <- struct{}{}
				go func(delivery amqp.Delivery) {
					defer func() { <-sem }()
					c.handle(queueName, delivery, handler)
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (c *Consumer) handle(queueName string, delivery amqp.Delivery, handler func([]byte) error) {
	if err := handler(delivery.Body); err != nil {
		c.log.Warn("message handling failed, requeueing",
			slog.String("queue", queueName),
			slog.Any("err", err),
		)
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.log.Error("failed to nack message", slog.Any("err", nackErr))
		}
		return
	}
	if ackErr := delivery.Ack(false); ackErr != nil {
		c.log.Error("failed to ack message", slog.Any("err", ackErr))
	}
}
