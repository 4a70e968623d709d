// Package sender доставляет напоминания о продлении по электронной почте.
package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/smtp"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/magabrotheeeer/subscription-tracker/internal/storage/cache"
)

const (
	// MarkerTTL время жизни маркера отправленного напоминания.
	MarkerTTL = 30 * 24 * time.Hour
	// InFlightTTL время жизни маркера письма, которое ещё отправляется.
	// Если отправитель упал, после истечения маркера сообщение будет обработано снова.
	InFlightTTL = 2 * time.Minute
)

// ErrInFlight напоминание сейчас отправляет другой обработчик.
var ErrInFlight = errors.New("reminder is being sent")

// Markers маркеры идемпотентности в Redis.
type Markers interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Confirm(ctx context.Context, key string, ttl time.Duration) error
	Confirmed(ctx context.Context, key string) (bool, error)
	Invalidate(ctx context.Context, key string) error
}

// Service отправляет письма с напоминаниями.
type Service struct {
	transport smtp.TransportInterface
	markers   Markers
	templates map[int]emailTemplate
	metrics   *metrics.Metrics
	log       *slog.Logger

	// пауза перед возвратом в очередь сообщения, которое ещё отправляется
	requeueDelay time.Duration
}

// New создает новый экземпляр Service.
func New(transport smtp.TransportInterface, markers Markers, m *metrics.Metrics, log *slog.Logger) (*Service, error) {
	templates, err := buildTemplates()
	if err != nil {
		return nil, fmt.Errorf("sender.New: %w", err)
	}
	return &Service{
		transport:    transport,
		markers:      markers,
		templates:    templates,
		metrics:      m,
		log:          log,
		requeueDelay: time.Second,
	}, nil
}

// HandleReminder обрабатывает сообщение из очереди напоминаний.
// Ошибка означает, что письмо не ушло и сообщение нужно вернуть в очередь.
// Нечитаемые сообщения подтверждаются и только логируются.
func (s *Service) HandleReminder(ctx context.Context, body []byte) error {
	const op = "sender.HandleReminder"
	log := s.log.With(slog.String("op", op))

	var r models.Reminder
	if err := json.Unmarshal(body, &r); err != nil {
		log.Error("failed to unmarshal reminder, dropping message", sl.Err(err))
		return nil
	}
	log = log.With(sl.RunID(r.RunID), slog.Int("offset", r.Offset))

	tmpl, ok := s.templates[r.Offset]
	if !ok || r.To == "" {
		log.Error("reminder has unknown offset or empty recipient, dropping message")
		return nil
	}
	offset := metrics.Offset(r.Offset)

	key := cache.ReminderSentKey(r.RunID, r.Offset)
	acquired, err := s.markers.Acquire(ctx, key, InFlightTTL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !acquired {
		sent, err := s.markers.Confirmed(ctx, key)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if sent {
			log.Info("reminder already sent, skipping")
			s.metrics.RemindersSent.WithLabelValues(offset, "duplicate").Inc()
			return nil
		}
		log.Info("reminder is in flight, requeue")
		s.wait(ctx)
		return fmt.Errorf("%s: %w", op, ErrInFlight)
	}

	subject, text, err := tmpl.render(r.Offset, r.Subscription)
	if err == nil {
		err = s.sendEmail([]string{r.To}, subject, text)
	}
	if err != nil {
		if ierr := s.markers.Invalidate(context.WithoutCancel(ctx), key); ierr != nil {
			log.Error("failed to clear sent marker", sl.Err(ierr))
		}
		s.metrics.RemindersSent.WithLabelValues(offset, "error").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.markers.Confirm(context.WithoutCancel(ctx), key, MarkerTTL); err != nil {
		log.Error("failed to confirm sent marker", sl.Err(err))
	}
	s.metrics.RemindersSent.WithLabelValues(offset, "sent").Inc()
	log.Info("reminder sent", sl.SubscriptionID(r.Subscription.ID))
	return nil
}

func (s *Service) wait(ctx context.Context) {
	if s.requeueDelay <= 0 {
		return
	}
	t := time.NewTimer(s.requeueDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (s *Service) sendEmail(to []string, subject, bodyText string) error {
	from := s.transport.GetSMTPUser()
	msg := strings.Join([]string{
		"From: " + from,
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

	if err := client.Mail(from); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
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
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}

	if _, err := wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err := wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}

	if err := client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Debug("email sent", slog.Any("to", to))
	return nil
}
