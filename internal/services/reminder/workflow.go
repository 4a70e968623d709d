// Package reminder описывает процесс напоминаний о продлении подписки.
//
// Один экземпляр на подписку. Процесс спит до дат renewal-7, -5, -3 и -1 день
// и в каждую из них, если подписка всё ещё активна, отправляет напоминание.
package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/renewal"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/workflow"
)

// Name имя workflow в журнале.
const Name = "subscription-reminder"

// RunID идентификатор экземпляра для подписки.
func RunID(subscriptionID string) string {
	return "reminder:" + subscriptionID
}

// Payload входные данные экземпляра.
type Payload struct {
	SubscriptionID string `json:"subscriptionId"`
}

// Snapshots читает подписку вместе с контактом владельца.
type Snapshots interface {
	GetSubscriptionSnapshot(ctx context.Context, id string) (*models.SubscriptionSnapshot, error)
}

// Sender доставляет напоминание.
type Sender interface {
	Send(ctx context.Context, r models.Reminder) error
}

// Starter создаёт экземпляры workflow.
type Starter interface {
	Start(ctx context.Context, name, runID, subscriptionID string, payload []byte) (*models.WorkflowRun, bool, error)
}

// Registrar регистрирует тела workflow.
type Registrar interface {
	Register(name string, fn workflow.Func)
}

// Workflow тело процесса напоминаний.
type Workflow struct {
	subs   Snapshots
	sender Sender
	log    *slog.Logger
}

// New создаёт Workflow.
func New(subs Snapshots, sender Sender, log *slog.Logger) *Workflow {
	return &Workflow{subs: subs, sender: sender, log: log}
}

// Register добавляет процесс в движок под именем Name.
func (w *Workflow) Register(r Registrar) {
	r.Register(Name, w.Run)
}

// Start запускает процесс для подписки. Повторный запуск для той же подписки
// возвращает существующий экземпляр.
func Start(ctx context.Context, s Starter, subscriptionID string) (*models.WorkflowRun, bool, error) {
	const op = "reminder.Start"
	if subscriptionID == "" {
		return nil, false, apperr.Validation(op, "subscriptionId is required")
	}
	payload, err := json.Marshal(Payload{SubscriptionID: subscriptionID})
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return s.Start(ctx, Name, RunID(subscriptionID), subscriptionID, payload)
}

// Run одно воспроизведение процесса.
func (w *Workflow) Run(ctx context.Context, wc *workflow.Context) error {
	const op = "reminder.Run"

	var p Payload
	if err := wc.Payload(&p); err != nil {
		return apperr.Wrap(apperr.KindPermanentAbort, op, "invalid payload", err)
	}
	if p.SubscriptionID == "" {
		return apperr.PermanentAbort(op, "subscriptionId is required")
	}
	log := w.log.With(slog.String("op", op), sl.RunID(wc.RunID()),
		sl.SubscriptionID(p.SubscriptionID))

	sub, err := w.fetch(ctx, wc, "Get Subscription", p.SubscriptionID)
	if err != nil {
		return err
	}
	if err := checkActive(op, sub, wc); err != nil {
		log.Info("stopping workflow", slog.String("reason", err.Error()))
		return err
	}

	for _, offset := range models.ReminderOffsets {
		reminderDate := renewal.ReminderDate(sub.RenewalDate, offset)
		now := wc.Now()
		if reminderDate.Before(now) && !renewal.SameDay(now, reminderDate) {
			continue
		}

		if reminderDate.After(now) {
			log.Debug("sleeping until reminder", slog.Int("offset", offset), slog.Time("reminder_date", reminderDate))
		}
		if err := wc.SleepUntil(ctx, fmt.Sprintf("Reminder %d days before", offset), reminderDate); err != nil {
			return err
		}

		fresh, err := w.fetch(ctx, wc, fmt.Sprintf("Get Subscription after %d days wake-up", offset), p.SubscriptionID)
		if err != nil {
			return err
		}
		if err := checkActive(op, fresh, wc); err != nil {
			log.Info("stopping workflow after wake-up", slog.Int("offset", offset), slog.String("reason", err.Error()))
			return err
		}

		if !renewal.SameDay(wc.Now(), reminderDate) {
			continue
		}
		if err := w.trigger(ctx, wc, offset, fresh); err != nil {
			return err
		}
	}

	log.Info("all reminders processed")
	return nil
}

func (w *Workflow) fetch(ctx context.Context, wc *workflow.Context, step, id string) (*models.SubscriptionSnapshot, error) {
	var sub models.SubscriptionSnapshot
	err := wc.Run(ctx, step, func(ctx context.Context) (any, error) {
		return w.subs.GetSubscriptionSnapshot(ctx, id)
	}, &sub)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (w *Workflow) trigger(ctx context.Context, wc *workflow.Context, offset int, sub *models.SubscriptionSnapshot) error {
	step := fmt.Sprintf("%d days before reminder", offset)
	return wc.Run(ctx, step, func(ctx context.Context) (any, error) {
		r := models.Reminder{
			RunID:        wc.RunID(),
			Offset:       offset,
			To:           sub.UserEmail,
			Subscription: *sub,
		}
		if err := w.sender.Send(ctx, r); err != nil {
			return nil, err
		}
		return map[string]any{"offset": offset, "to": sub.UserEmail}, nil
	}, nil)
}

// checkActive прерывает процесс, если подписка не активна или дата продления прошла.
func checkActive(op string, sub *models.SubscriptionSnapshot, wc *workflow.Context) error {
	if sub.Status != models.StatusActive {
		return apperr.PermanentAbort(op, fmt.Sprintf("subscription is %s", sub.Status))
	}
	if sub.RenewalDate.Before(wc.Now()) {
		return apperr.PermanentAbort(op, "renewal date has passed")
	}
	return nil
}
