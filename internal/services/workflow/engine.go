package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// Func тело workflow.
type Func func(ctx context.Context, wc *Context) error

// Store журнал экземпляров и шагов.
type Store interface {
	CreateRun(ctx context.Context, run models.WorkflowRun) (*models.WorkflowRun, bool, error)
	GetRun(ctx context.Context, id string) (*models.WorkflowRun, error)
	UpdateRun(ctx context.Context, run models.WorkflowRun) error
	ListUnfinishedRuns(ctx context.Context) ([]*models.WorkflowRun, error)
	ListSteps(ctx context.Context, runID string) (map[string]models.WorkflowStep, error)
	CommitStep(ctx context.Context, step models.WorkflowStep) (*models.WorkflowStep, error)
}

// Queue очередь пробуждений с блокировкой экземпляра на время воспроизведения.
type Queue interface {
	Schedule(ctx context.Context, runID string, at time.Time) error
	ScheduleIfAbsent(ctx context.Context, runID string, at time.Time) error
	Claim(ctx context.Context, now time.Time, limit int64) ([]string, error)
	Remove(ctx context.Context, runID string) error
	Lock(ctx context.Context, runID string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, runID string) error
}

// Options политика повторов и часы движка.
type Options struct {
	MaxAttempts int
	RetryDelay  time.Duration
	LockTTL     time.Duration
	Now         func() time.Time
}

// Engine запускает и воспроизводит экземпляры зарегистрированных workflow.
type Engine struct {
	store   Store
	queue   Queue
	log     *slog.Logger
	metrics *metrics.Metrics
	opts    Options

	mu        sync.RWMutex
	workflows map[string]Func
}

// NewEngine создаёт движок. Нулевые поля opts заменяются значениями по умолчанию.
func NewEngine(store Store, queue Queue, log *slog.Logger, m *metrics.Metrics, opts Options) *Engine {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 5
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 30 * time.Second
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:     store,
		queue:     queue,
		log:       log,
		metrics:   m,
		opts:      opts,
		workflows: make(map[string]Func),
	}
}

// Register добавляет тело workflow под именем name.
func (e *Engine) Register(name string, fn Func) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workflows[name] = fn
}

// Start создаёт экземпляр runID и ставит его в очередь на немедленный запуск.
// Повторный вызов с тем же runID возвращает существующий экземпляр и created=false.
func (e *Engine) Start(ctx context.Context, name, runID, subscriptionID string, payload []byte) (*models.WorkflowRun, bool, error) {
	const op = "workflow.Start"
	if name == "" || runID == "" {
		return nil, false, apperr.Validation(op, "workflow name and run id are required")
	}

	now := e.opts.Now().UTC()
	run, created, err := e.store.CreateRun(ctx, models.WorkflowRun{
		ID:             runID,
		Workflow:       name,
		SubscriptionID: subscriptionID,
		Payload:        payload,
		WakeAt:         &now,
	})
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if !created {
		e.log.Info("workflow already started", sl.RunID(runID), slog.String("status", string(run.Status)))
		return run, false, nil
	}

	if err := e.queue.Schedule(ctx, runID, now); err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	e.log.Info("workflow started",
		slog.String("workflow", name),
		sl.RunID(runID),
		sl.SubscriptionID(subscriptionID))
	return run, true, nil
}

// Resume выполняет одно воспроизведение экземпляра runID.
func (e *Engine) Resume(ctx context.Context, runID string) error {
	const op = "workflow.Resume"
	log := e.log.With(slog.String("op", op), sl.RunID(runID))

	locked, err := e.queue.Lock(ctx, runID, e.opts.LockTTL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !locked {
		// Пробуждение уже снято Claim. Если держатель блокировки упал, без
		// возврата в очередь экземпляр останется без пробуждения.
		at := e.opts.Now().Add(e.opts.LockTTL)
		if err := e.queue.ScheduleIfAbsent(context.WithoutCancel(ctx), runID, at); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		log.Debug("run is being replayed elsewhere, wake-up deferred", slog.Time("wake_at", at))
		return nil
	}
	defer func() {
		if err := e.queue.Unlock(context.WithoutCancel(ctx), runID); err != nil {
			log.Warn("failed to release run lock", sl.Err(err))
		}
	}()

	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			log.Warn("claimed wake-up for unknown run")
			return nil
		}
		return e.retryLater(ctx, runID, fmt.Errorf("%s: %w", op, err))
	}
	if run.Status.Terminal() {
		return nil
	}
	log = log.With(slog.String("workflow", run.Workflow), sl.SubscriptionID(run.SubscriptionID))

	e.mu.RLock()
	fn, ok := e.workflows[run.Workflow]
	e.mu.RUnlock()
	if !ok {
		log.Error("workflow is not registered")
		return e.finish(ctx, run, models.RunFailed, "workflow not registered: "+run.Workflow)
	}

	steps, err := e.store.ListSteps(ctx, runID)
	if err != nil {
		return e.retryLater(ctx, runID, fmt.Errorf("%s: %w", op, err))
	}

	run.Status = models.RunRunning
	if err := e.store.UpdateRun(ctx, *run); err != nil {
		return e.retryLater(ctx, runID, fmt.Errorf("%s: %w", op, err))
	}

	wc := newContext(run, steps, e.store, e.opts.Now, log, func(kind models.StepKind) {
		e.metrics.WorkflowSteps.WithLabelValues(run.Workflow, string(kind)).Inc()
	})

	started := time.Now()
	runErr := fn(ctx, wc)
	e.metrics.WorkflowReplay.WithLabelValues(run.Workflow).Observe(time.Since(started).Seconds())

	return e.settle(ctx, log, run, wc, runErr)
}

// settle сохраняет исход воспроизведения.
func (e *Engine) settle(ctx context.Context, log *slog.Logger, run *models.WorkflowRun, wc *Context, runErr error) error {
	bctx := context.WithoutCancel(ctx)

	switch {
	case runErr == nil:
		log.Info("workflow completed")
		return e.finish(bctx, run, models.RunCompleted, "")

	case errors.Is(runErr, ErrSuspended):
		wakeAt, step := wc.Suspension()
		run.Status = models.RunSleeping
		run.Attempts = 0
		run.LastError = ""
		run.WakeAt = &wakeAt
		if err := e.store.UpdateRun(bctx, *run); err != nil {
			return fmt.Errorf("workflow.settle: %w", err)
		}
		if err := e.queue.Schedule(bctx, run.ID, wakeAt); err != nil {
			return fmt.Errorf("workflow.settle: %w", err)
		}
		e.metrics.WorkflowRuns.WithLabelValues(run.Workflow, string(models.RunSleeping)).Inc()
		log.Info("workflow suspended", slog.String("step", step), slog.Time("wake_at", wakeAt))
		return nil

	case apperr.Is(runErr, apperr.KindPermanentAbort), apperr.Is(runErr, apperr.KindNotFound):
		log.Info("workflow skipped", slog.String("reason", runErr.Error()))
		return e.finish(bctx, run, models.RunSkipped, runErr.Error())

	case ctx.Err() != nil:
		log.Warn("replay interrupted, rescheduling", sl.Err(runErr))
		return e.reschedule(bctx, run, e.opts.Now(), runErr.Error())

	default:
		run.Attempts++
		if run.Attempts >= e.opts.MaxAttempts {
			log.Error("workflow failed", slog.Int("attempts", run.Attempts), sl.Err(runErr))
			return e.finish(bctx, run, models.RunFailed, runErr.Error())
		}
		next := e.opts.Now().Add(e.opts.RetryDelay)
		log.Warn("replay failed, retry scheduled",
			slog.Int("attempts", run.Attempts), slog.Time("retry_at", next), sl.Err(runErr))
		e.metrics.WorkflowRuns.WithLabelValues(run.Workflow, "retry").Inc()
		return e.reschedule(bctx, run, next, runErr.Error())
	}
}

func (e *Engine) finish(ctx context.Context, run *models.WorkflowRun, status models.RunStatus, lastErr string) error {
	run.Status = status
	run.WakeAt = nil
	run.LastError = lastErr
	if err := e.store.UpdateRun(ctx, *run); err != nil {
		return fmt.Errorf("workflow.finish: %w", err)
	}
	if err := e.queue.Remove(ctx, run.ID); err != nil {
		e.log.Warn("failed to remove wake-up", sl.RunID(run.ID), sl.Err(err))
	}
	e.metrics.WorkflowRuns.WithLabelValues(run.Workflow, string(status)).Inc()
	return nil
}

func (e *Engine) reschedule(ctx context.Context, run *models.WorkflowRun, at time.Time, lastErr string) error {
	run.Status = models.RunPending
	run.WakeAt = &at
	run.LastError = lastErr
	if err := e.store.UpdateRun(ctx, *run); err != nil {
		return fmt.Errorf("workflow.reschedule: %w", err)
	}
	if err := e.queue.Schedule(ctx, run.ID, at); err != nil {
		return fmt.Errorf("workflow.reschedule: %w", err)
	}
	return nil
}

// retryLater возвращает пробуждение в очередь, когда сам журнал недоступен.
func (e *Engine) retryLater(ctx context.Context, runID string, cause error) error {
	at := e.opts.Now().Add(e.opts.RetryDelay)
	if err := e.queue.Schedule(context.WithoutCancel(ctx), runID, at); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// Recover ставит в очередь все незавершённые экземпляры из журнала.
// Нужен после потери данных Redis или падения между Claim и Resume.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	const op = "workflow.Recover"
	runs, err := e.store.ListUnfinishedRuns(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	now := e.opts.Now()
	for _, run := range runs {
		at := now
		if run.WakeAt != nil && run.WakeAt.After(now) {
			at = *run.WakeAt
		}
		if err := e.queue.Schedule(ctx, run.ID, at); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
	}
	if len(runs) > 0 {
		e.log.Info("unfinished workflows rescheduled", slog.Int("count", len(runs)))
	}
	return len(runs), nil
}
