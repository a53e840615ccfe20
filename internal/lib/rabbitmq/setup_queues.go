package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// QueueConfig пара очередь/ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Ключи маршрутизации событий платформы.
const (
	RoutingKeyEmail        = "email.send"
	RoutingKeyNotification = "admin.notification"
)

// GetPlatformQueues возвращает очереди, которые слушают воркеры.
func GetPlatformQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "email.outgoing", RoutingKey: RoutingKeyEmail},
		{QueueName: "admin.notifications", RoutingKey: RoutingKeyNotification},
	}
}

// SetupQueues объявляет exchange, очереди и привязки.
func SetupQueues(ch *amqp.Channel, queues []QueueConfig) error {
	const op = "rabbitmq.SetupQueues"

	if err := ch.ExchangeDeclare(Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err := ch.QueueBind(q.QueueName, q.RoutingKey, Exchange, false, nil); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}
