// Package rabbitmq содержит подключение к RabbitMQ, объявление очередей
// и публикацию сообщений. Через брокер уходят письма (magic link, сброс
// пароля, уведомления о платежах) и события для админских уведомлений.
package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// Exchange общий exchange платформы.
const Exchange = "platform.events"

// Connect устанавливает соединение и открывает канал.
func Connect(url string) (*amqp.Connection, *amqp.Channel, error) {
	const op = "rabbitmq.Connect"

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return conn, ch, nil
}
