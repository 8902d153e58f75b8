// Package store defines the persistence contracts for task definitions
// and execution records. Each mutating operation is a single atomic
// read-modify-write against one record keyed by identifier; the engine
// relies on that atomicity instead of in-process locking.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/flemzord/recur/internal/task"
)

// Sentinel errors returned by store implementations.
var (
	ErrTaskNotFound      = errors.New("store: task not found")
	ErrExecutionNotFound = errors.New("store: execution not found")
)

// TaskStore is the durable home of task definitions and their scheduling
// cursors. Update and increment operations return ErrTaskNotFound when the
// identifier does not exist.
type TaskStore interface {
	Save(ctx context.Context, t *task.Task) error
	FindByID(ctx context.Context, id string) (*task.Task, error)
	FindByUserAndID(ctx context.Context, userID, id string) (*task.Task, error)
	FindByUser(ctx context.Context, userID string) ([]*task.Task, error)
	FindActive(ctx context.Context) ([]*task.Task, error)

	// FindDue returns tasks with status active and NextRunAt at or before
	// the given instant. Paused and disabled tasks are never returned.
	FindDue(ctx context.Context, before time.Time) ([]*task.Task, error)

	UpdateNextRun(ctx context.Context, id string, nextRun time.Time) error
	UpdateLastRun(ctx context.Context, id string, lastRun time.Time, sessionID string) error
	UpdateStatus(ctx context.Context, id string, status task.Status) error
	IncrementRunCount(ctx context.Context, id string) error
	IncrementFailureCount(ctx context.Context, id string) error
	ResetFailureCount(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// ExecutionStore is the durable home of per-occurrence execution records.
// Finders return newest-first by scheduled time.
type ExecutionStore interface {
	Save(ctx context.Context, e *task.Execution) error
	FindByID(ctx context.Context, id string) (*task.Execution, error)
	FindByTask(ctx context.Context, taskID string, limit int) ([]*task.Execution, error)
	FindByUser(ctx context.Context, userID string, limit int) ([]*task.Execution, error)
}
