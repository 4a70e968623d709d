package reminder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// Publisher публикует сообщение в брокер.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Notifier передаёт напоминания сервису отправки писем через RabbitMQ.
type Notifier struct {
	pub     Publisher
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewNotifier создаёт Notifier.
func NewNotifier(pub Publisher, m *metrics.Metrics, log *slog.Logger) *Notifier {
	return &Notifier{pub: pub, metrics: m, log: log}
}

// Send публикует напоминание с ключом reminder.
func (n *Notifier) Send(ctx context.Context, r models.Reminder) error {
	const op = "reminder.Send"
	if r.To == "" {
		return apperr.PermanentAbort(op, "owner e-mail is empty")
	}
	if err := n.pub.Publish(ctx, rabbitmq.RoutingKeyReminder, r); err != nil {
		return apperr.Transient(op, fmt.Errorf("publish reminder: %w", err))
	}
	n.metrics.RemindersQueued.WithLabelValues(metrics.Offset(r.Offset)).Inc()
	n.log.Info("reminder published",
		sl.RunID(r.RunID),
		slog.Int("offset", r.Offset),
		sl.SubscriptionID(r.Subscription.ID))
	return nil
}
