package models

import (
	"encoding/json"
	"time"
)

// RunStatus состояние экземпляра workflow.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSleeping  RunStatus = "sleeping"
	RunCompleted RunStatus = "completed"
	RunSkipped   RunStatus = "skipped"
	RunFailed    RunStatus = "failed"
)

// Terminal сообщает, завершён ли экземпляр окончательно.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunSkipped || s == RunFailed
}

// StepKind тип шага.
type StepKind string

const (
	StepRun   StepKind = "run"
	StepSleep StepKind = "sleep"
)

// WorkflowRun экземпляр долговременного процесса.
type WorkflowRun struct {
	ID             string          `json:"id"`
	Workflow       string          `json:"workflow"`
	SubscriptionID string          `json:"subscriptionId"`
	Payload        json.RawMessage `json:"payload"`
	Status         RunStatus       `json:"status"`
	Attempts       int             `json:"attempts"`
	WakeAt         *time.Time      `json:"wakeAt,omitempty"`
	LastError      string          `json:"lastError,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// WorkflowStep зафиксированный шаг экземпляра. Output содержит результат шага в JSON.
type WorkflowStep struct {
	RunID       string          `json:"runId"`
	Name        string          `json:"name"`
	Kind        StepKind        `json:"kind"`
	Output      json.RawMessage `json:"output,omitempty"`
	CompletedAt time.Time       `json:"completedAt"`
}
