package models

import "encoding/json"

// EmailMessage письмо, поставленное в очередь на отправку.
type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NotificationEvent событие для создания админского уведомления,
// публикуется в брокер и обрабатывается воркером.
type NotificationEvent struct {
	Type     NotificationType `json:"type"`
	Title    string           `json:"title"`
	Message  string           `json:"message"`
	Metadata json.RawMessage  `json:"metadata,omitempty"`
	UserID   *string          `json:"user_id,omitempty"`
}
