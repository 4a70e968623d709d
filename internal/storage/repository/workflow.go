package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

const runColumns = "id, workflow, subscription_id, payload, status, attempts, wake_at, last_error, created_at, updated_at"

func scanRun(row scanner) (*models.WorkflowRun, error) {
	var (
		run     models.WorkflowRun
		subID   sql.NullString
		payload []byte
		wakeAt  sql.NullTime
	)
	if err := row.Scan(&run.ID, &run.Workflow, &subID, &payload, &run.Status, &run.Attempts,
		&wakeAt, &run.LastError, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, err
	}
	run.SubscriptionID = subID.String
	run.Payload = json.RawMessage(payload)
	if wakeAt.Valid {
		t := wakeAt.Time
		run.WakeAt = &t
	}
	return &run, nil
}

// CreateRun сохраняет новый экземпляр workflow. Если экземпляр с таким id уже есть,
// возвращает существующий и created=false.
func (s *Storage) CreateRun(ctx context.Context, run models.WorkflowRun) (*models.WorkflowRun, bool, error) {
	const op = "storage.CreateRun"
	if err := checkCtx(ctx, op); err != nil {
		return nil, false, err
	}

	var subID any
	if run.SubscriptionID != "" {
		subID = run.SubscriptionID
	}
	payload := []byte(run.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	query := `INSERT INTO workflow_runs (id, workflow, subscription_id, payload, status, wake_at)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (id) DO NOTHING
			  RETURNING ` + runColumns
	created, err := scanRun(s.DB.QueryRowContext(ctx, query,
		run.ID, run.Workflow, subID, payload, models.RunPending, run.WakeAt))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, mapError(op, "workflow run", err)
	}

	existing, err := s.GetRun(ctx, run.ID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetRun возвращает экземпляр workflow по id.
func (s *Storage) GetRun(ctx context.Context, id string) (*models.WorkflowRun, error) {
	const op = "storage.GetRun"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	run, err := scanRun(s.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM workflow_runs WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(op, "workflow run", err)
	}
	return run, nil
}

// UpdateRun сохраняет статус, счётчик попыток, время пробуждения и последнюю ошибку.
func (s *Storage) UpdateRun(ctx context.Context, run models.WorkflowRun) error {
	const op = "storage.UpdateRun"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	query, args, err := psql.Update("workflow_runs").
		Set("status", run.Status).
		Set("attempts", run.Attempts).
		Set("wake_at", run.WakeAt).
		Set("last_error", run.LastError).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": run.ID}).
		ToSql()
	if err != nil {
		return mapError(op, "workflow run", err)
	}

	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(op, "workflow run", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(op, "workflow run", err)
	}
	if n == 0 {
		return mapError(op, "workflow run", sql.ErrNoRows)
	}
	return nil
}

// ListUnfinishedRuns возвращает экземпляры, ожидающие запуска или пробуждения.
func (s *Storage) ListUnfinishedRuns(ctx context.Context) ([]*models.WorkflowRun, error) {
	const op = "storage.ListUnfinishedRuns"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query, args, err := psql.Select(runColumns).
		From("workflow_runs").
		Where(sq.Eq{"status": []models.RunStatus{models.RunPending, models.RunRunning, models.RunSleeping}}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, mapError(op, "workflow run", err)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, "workflow run", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.WorkflowRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, mapError(op, "workflow run", err)
		}
		result = append(result, run)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, "workflow run", err)
	}
	return result, nil
}

// ListSteps возвращает зафиксированные шаги экземпляра по имени.
func (s *Storage) ListSteps(ctx context.Context, runID string) (map[string]models.WorkflowStep, error) {
	const op = "storage.ListSteps"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT run_id, name, kind, output, completed_at FROM workflow_steps WHERE run_id = $1`, runID)
	if err != nil {
		return nil, mapError(op, "workflow step", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make(map[string]models.WorkflowStep)
	for rows.Next() {
		var (
			step   models.WorkflowStep
			output []byte
		)
		if err := rows.Scan(&step.RunID, &step.Name, &step.Kind, &output, &step.CompletedAt); err != nil {
			return nil, mapError(op, "workflow step", err)
		}
		if output != nil {
			step.Output = json.RawMessage(output)
		}
		result[step.Name] = step
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, "workflow step", err)
	}
	return result, nil
}

// CommitStep фиксирует шаг, если он ещё не записан, и возвращает сохранённую версию.
// Повторная фиксация того же имени не перезаписывает первый результат.
func (s *Storage) CommitStep(ctx context.Context, step models.WorkflowStep) (*models.WorkflowStep, error) {
	const op = "storage.CommitStep"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var output any
	if len(step.Output) > 0 {
		output = []byte(step.Output)
	}
	completedAt := step.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO workflow_steps (run_id, name, kind, output, completed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (run_id, name) DO NOTHING`,
		step.RunID, step.Name, step.Kind, output, completedAt)
	if err != nil {
		return nil, mapError(op, "workflow step", err)
	}

	var (
		stored models.WorkflowStep
		raw    []byte
	)
	err = s.DB.QueryRowContext(ctx,
		`SELECT run_id, name, kind, output, completed_at FROM workflow_steps WHERE run_id = $1 AND name = $2`,
		step.RunID, step.Name).Scan(&stored.RunID, &stored.Name, &stored.Kind, &raw, &stored.CompletedAt)
	if err != nil {
		return nil, mapError(op, "workflow step", err)
	}
	if raw != nil {
		stored.Output = json.RawMessage(raw)
	}
	return &stored, nil
}
