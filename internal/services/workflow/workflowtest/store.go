// Package workflowtest содержит журнал workflow в памяти для тестов.
package workflowtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// Store потокобезопасный журнал экземпляров и шагов в памяти.
type Store struct {
	mu    sync.Mutex
	runs  map[string]models.WorkflowRun
	steps map[string]map[string]models.WorkflowStep
	order map[string][]string

	// CommitErr, если задан, возвращается из CommitStep вместо фиксации.
	CommitErr error
}

// NewStore создаёт пустой журнал.
func NewStore() *Store {
	return &Store{
		runs:  make(map[string]models.WorkflowRun),
		steps: make(map[string]map[string]models.WorkflowStep),
		order: make(map[string][]string),
	}
}

func (s *Store) CreateRun(_ context.Context, run models.WorkflowRun) (*models.WorkflowRun, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.runs[run.ID]; ok {
		return &existing, false, nil
	}
	now := time.Now().UTC()
	run.Status = models.RunPending
	run.CreatedAt = now
	run.UpdatedAt = now
	s.runs[run.ID] = run
	return &run, true, nil
}

func (s *Store) GetRun(_ context.Context, id string) (*models.WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, apperr.NotFound("workflowtest.GetRun", "workflow run not found")
	}
	return &run, nil
}

func (s *Store) UpdateRun(_ context.Context, run models.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.runs[run.ID]
	if !ok {
		return apperr.NotFound("workflowtest.UpdateRun", "workflow run not found")
	}
	existing.Status = run.Status
	existing.Attempts = run.Attempts
	existing.WakeAt = run.WakeAt
	existing.LastError = run.LastError
	existing.UpdatedAt = time.Now().UTC()
	s.runs[run.ID] = existing
	return nil
}

func (s *Store) ListUnfinishedRuns(_ context.Context) ([]*models.WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.WorkflowRun
	for _, run := range s.runs {
		if run.Status.Terminal() {
			continue
		}
		r := run
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListSteps(_ context.Context, runID string) (map[string]models.WorkflowStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]models.WorkflowStep, len(s.steps[runID]))
	for name, step := range s.steps[runID] {
		out[name] = step
	}
	return out, nil
}

// CommitStep фиксирует шаг, если его ещё нет, и возвращает сохранённую версию.
func (s *Store) CommitStep(_ context.Context, step models.WorkflowStep) (*models.WorkflowStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CommitErr != nil {
		return nil, s.CommitErr
	}
	if _, ok := s.runs[step.RunID]; !ok {
		return nil, apperr.NotFound("workflowtest.CommitStep", "workflow run not found")
	}
	byName, ok := s.steps[step.RunID]
	if !ok {
		byName = make(map[string]models.WorkflowStep)
		s.steps[step.RunID] = byName
	}
	if stored, ok := byName[step.Name]; ok {
		return &stored, nil
	}
	byName[step.Name] = step
	s.order[step.RunID] = append(s.order[step.RunID], step.Name)
	return &step, nil
}

// Run возвращает копию экземпляра или nil.
func (s *Store) Run(id string) *models.WorkflowRun {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return nil
	}
	return &run
}

// StepNames имена зафиксированных шагов runID в порядке фиксации.
func (s *Store) StepNames(runID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.order[runID]...)
}
