package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/workflow/workflowtest"
)

func newTestContext(t *testing.T, store *workflowtest.Store, clock *workflowtest.Clock) *Context {
	t.Helper()
	run, _, err := store.CreateRun(context.Background(), models.WorkflowRun{
		ID:       "run-1",
		Workflow: testWorkflow,
		Payload:  json.RawMessage(`{"subscriptionId":"sub-1"}`),
	})
	require.NoError(t, err)
	steps, err := store.ListSteps(context.Background(), run.ID)
	require.NoError(t, err)
	return newContext(run, steps, store, clock.Now, discardLogger(), func(models.StepKind) {})
}

func TestContext_Payload(t *testing.T) {
	wc := newTestContext(t, workflowtest.NewStore(), workflowtest.NewClock(time.Now()))

	var p struct {
		SubscriptionID string `json:"subscriptionId"`
	}
	require.NoError(t, wc.Payload(&p))
	assert.Equal(t, "sub-1", p.SubscriptionID)
	assert.Equal(t, "run-1", wc.RunID())
}

func TestContext_StepNames(t *testing.T) {
	tests := []struct {
		name  string
		steps []string
	}{
		{name: "пустое имя", steps: []string{""}},
		{name: "повтор имени", steps: []string{"fetch", "fetch"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wc := newTestContext(t, workflowtest.NewStore(), workflowtest.NewClock(time.Now()))
			var err error
			for _, name := range tt.steps {
				err = wc.Run(context.Background(), name, func(context.Context) (any, error) { return nil, nil }, nil)
			}
			assert.Error(t, err)
		})
	}
}

func TestContext_RunCommitError(t *testing.T) {
	store := workflowtest.NewStore()
	wc := newTestContext(t, store, workflowtest.NewClock(time.Now()))
	store.CommitErr = errors.New("db down")

	err := wc.Run(context.Background(), "fetch", func(context.Context) (any, error) { return 1, nil }, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Empty(t, store.StepNames("run-1"))
}

func TestContext_SleepUntil(t *testing.T) {
	store := workflowtest.NewStore()
	clock := workflowtest.NewClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	wc := newTestContext(t, store, clock)
	ctx := context.Background()

	require.NoError(t, wc.SleepUntil(ctx, "past", clock.Now().Add(-time.Hour)))
	assert.Equal(t, []string{"past"}, store.StepNames("run-1"))

	future := clock.Now().Add(time.Hour)
	err := wc.SleepUntil(ctx, "future", future)
	require.ErrorIs(t, err, ErrSuspended)

	at, step := wc.Suspension()
	assert.True(t, at.Equal(future))
	assert.Equal(t, "future", step)
	assert.Equal(t, []string{"past"}, store.StepNames("run-1"))
}
