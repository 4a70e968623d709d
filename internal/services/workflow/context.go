// Package workflow реализует долговременные процессы с журналом шагов.
//
// Тело процесса воспроизводится заново при каждом пробуждении. Шаги Run и
// SleepUntil, уже зафиксированные в журнале, не выполняются повторно: Run
// возвращает сохранённый результат, SleepUntil сразу продолжает работу.
// Незафиксированный SleepUntil со временем в будущем прерывает тело через
// ErrSuspended, и экземпляр ставится в очередь пробуждений.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// ErrSuspended тело остановлено до наступления времени пробуждения.
var ErrSuspended = errors.New("workflow suspended")

// StepFunc выполняет шаг и возвращает результат, сериализуемый в JSON.
type StepFunc func(ctx context.Context) (any, error)

// Context состояние одного воспроизведения экземпляра.
type Context struct {
	run     *models.WorkflowRun
	steps   map[string]models.WorkflowStep
	store   Store
	now     func() time.Time
	log     *slog.Logger
	onStep  func(kind models.StepKind)
	seen    map[string]struct{}
	wakeAt  time.Time
	waitFor string
}

func newContext(run *models.WorkflowRun, steps map[string]models.WorkflowStep, store Store,
	now func() time.Time, log *slog.Logger, onStep func(models.StepKind)) *Context {
	if steps == nil {
		steps = make(map[string]models.WorkflowStep)
	}
	return &Context{
		run:    run,
		steps:  steps,
		store:  store,
		now:    now,
		log:    log,
		onStep: onStep,
		seen:   make(map[string]struct{}),
	}
}

// RunID идентификатор экземпляра.
func (c *Context) RunID() string { return c.run.ID }

// Now текущее время по часам движка.
func (c *Context) Now() time.Time { return c.now() }

// Payload декодирует входные данные экземпляра в v.
func (c *Context) Payload(v any) error {
	if err := json.Unmarshal(c.run.Payload, v); err != nil {
		return fmt.Errorf("workflow.Payload: %w", err)
	}
	return nil
}

// Run выполняет шаг name не более одного раза за жизнь экземпляра.
// Результат шага декодируется в out, если out не nil.
func (c *Context) Run(ctx context.Context, name string, fn StepFunc, out any) error {
	if err := c.enter(name); err != nil {
		return err
	}

	if step, ok := c.steps[name]; ok {
		c.log.Debug("step replayed from log", slog.String("step", name))
		return decode(name, step.Output, out)
	}

	res, err := fn(ctx)
	if err != nil {
		return fmt.Errorf("step %q: %w", name, err)
	}

	var output json.RawMessage
	if res != nil {
		output, err = json.Marshal(res)
		if err != nil {
			return fmt.Errorf("step %q: encode output: %w", name, err)
		}
	}

	stored, err := c.store.CommitStep(ctx, models.WorkflowStep{
		RunID:       c.run.ID,
		Name:        name,
		Kind:        models.StepRun,
		Output:      output,
		CompletedAt: c.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("step %q: commit: %w", name, err)
	}
	c.steps[name] = *stored
	c.onStep(models.StepRun)
	c.log.Info("step committed", slog.String("step", name))

	return decode(name, stored.Output, out)
}

// SleepUntil приостанавливает экземпляр до момента at.
// Если at уже наступил, шаг фиксируется и выполнение продолжается.
func (c *Context) SleepUntil(ctx context.Context, name string, at time.Time) error {
	if err := c.enter(name); err != nil {
		return err
	}
	if _, ok := c.steps[name]; ok {
		return nil
	}

	if at.After(c.now()) {
		c.wakeAt = at
		c.waitFor = name
		return ErrSuspended
	}

	stored, err := c.store.CommitStep(ctx, models.WorkflowStep{
		RunID:       c.run.ID,
		Name:        name,
		Kind:        models.StepSleep,
		CompletedAt: c.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("sleep %q: commit: %w", name, err)
	}
	c.steps[name] = *stored
	c.onStep(models.StepSleep)
	c.log.Info("woke up", slog.String("step", name), slog.Time("wake_at", at))
	return nil
}

// Suspension время и шаг, на которых остановлено тело.
func (c *Context) Suspension() (time.Time, string) {
	return c.wakeAt, c.waitFor
}

func (c *Context) enter(name string) error {
	if name == "" {
		return errors.New("workflow: empty step name")
	}
	if _, dup := c.seen[name]; dup {
		return fmt.Errorf("workflow: duplicate step name %q", name)
	}
	c.seen[name] = struct{}{}
	return nil
}

func decode(name string, output json.RawMessage, out any) error {
	if out == nil || len(output) == 0 {
		return nil
	}
	if err := json.Unmarshal(output, out); err != nil {
		return fmt.Errorf("step %q: decode output: %w", name, err)
	}
	return nil
}
