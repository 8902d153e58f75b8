package task

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the lifecycle state of one occurrence attempt.
type ExecutionStatus string

// Execution statuses. Transitions are one-directional:
// pending → running → completed|failed, or pending/running → cancelled.
const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// Execution is the audit record for one occurrence attempt of a task.
// It is owned exclusively by the runner until it reaches a terminal
// status; afterwards only the notification fields may still be set,
// exactly once each.
type Execution struct {
	ID        string `json:"id"`
	TaskID    string `json:"task_id"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`

	Status      ExecutionStatus `json:"status"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`

	ResultSummary string   `json:"result_summary,omitempty"`
	ErrorMessage  string   `json:"error_message,omitempty"`
	OutputFiles   []string `json:"output_files,omitempty"`

	NotificationSent  bool   `json:"notification_sent"`
	NotificationError string `json:"notification_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewExecution creates a pending execution record for one occurrence of
// the given task, due at scheduledAt.
func NewExecution(taskID, userID string, scheduledAt time.Time) *Execution {
	now := time.Now().UTC()
	return &Execution{
		ID:          uuid.NewString(),
		TaskID:      taskID,
		UserID:      userID,
		Status:      ExecutionPending,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Start transitions the execution to running and stamps StartedAt.
func (e *Execution) Start() {
	now := time.Now().UTC()
	e.Status = ExecutionRunning
	e.StartedAt = &now
	e.UpdatedAt = now
}

// Complete transitions the execution to its successful terminal state.
// CompletedAt is stamped exactly once, here.
func (e *Execution) Complete(summary string) {
	now := time.Now().UTC()
	e.Status = ExecutionCompleted
	e.CompletedAt = &now
	e.ResultSummary = summary
	e.UpdatedAt = now
}

// Fail transitions the execution to its failed terminal state with the
// error description.
func (e *Execution) Fail(errMsg string) {
	now := time.Now().UTC()
	e.Status = ExecutionFailed
	e.CompletedAt = &now
	e.ErrorMessage = errMsg
	e.UpdatedAt = now
}

// Cancel marks the execution cancelled. No core component calls this; it
// exists for administrative out-of-band marking.
func (e *Execution) Cancel() {
	now := time.Now().UTC()
	e.Status = ExecutionCancelled
	e.CompletedAt = &now
	e.UpdatedAt = now
}

// Terminal reports whether the execution has reached a final status.
func (e *Execution) Terminal() bool {
	switch e.Status {
	case ExecutionCompleted, ExecutionFailed, ExecutionCancelled:
		return true
	}
	return false
}
