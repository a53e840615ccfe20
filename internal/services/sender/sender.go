// Package sender обрабатывает сообщения из брокера: отправляет письма
// через SMTP и сохраняет уведомления для администраторов.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/lib/smtp"
	"github.com/a8n-tools/platform/internal/models"
)

// NotificationRepository сохраняет админские уведомления.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n models.CreateAdminNotification) (string, error)
}

// Service реализует обработку сообщений очередей.
type Service struct {
	transport smtp.TransportInterface
	repo      NotificationRepository
	log       *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(transport smtp.TransportInterface, repo NotificationRepository, log *slog.Logger) *Service {
	return &Service{
		transport: transport,
		repo:      repo,
		log:       log,
	}
}

// HandleEmailMessage отправляет письмо из очереди email.outgoing.
func (s *Service) HandleEmailMessage(body []byte) error {
	var message models.EmailMessage
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("failed to unmarshal email message", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}
	return s.sendEmail([]string{message.To}, message.Subject, message.Body)
}

// HandleNotificationEvent сохраняет уведомление из очереди
// admin.notifications.
func (s *Service) HandleNotificationEvent(ctx context.Context, body []byte) error {
	var event models.NotificationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal notification event", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	_, err := s.repo.CreateNotification(ctx, models.CreateAdminNotification{
		Type:     event.Type,
		Title:    event.Title,
		Message:  event.Message,
		Metadata: event.Metadata,
		UserID:   event.UserID,
	})
	if err != nil {
		s.log.Error("failed to store admin notification", sl.Err(err))
		return err
	}
	return nil
}

func (s *Service) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetFrom(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.transport.GetFrom()); err != nil {
		s.log.Error("failed to set MAIL FROM", sl.Err(err))
		return err
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get data writer", sl.Err(err))
		return err
	}
	if _, err := wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write message body", sl.Err(err))
		return err
	}
	if err := wc.Close(); err != nil {
		s.log.Error("failed to close data writer", sl.Err(err))
		return err
	}
	if err := client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP session", sl.Err(err))
		return err
	}

	s.log.Info("email sent", slog.String("subject", subject))
	return nil
}
