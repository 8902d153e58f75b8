// Package service implements the user-facing task operations shared by the
// HTTP gateway and the agent-facing tools: create, query, update, pause,
// resume, run-now, and delete, plus execution history lookups. Ownership is
// enforced here so transport layers stay thin.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/recur/internal/schedule"
	"github.com/flemzord/recur/internal/store"
	"github.com/flemzord/recur/internal/task"
)

// ErrInvalidTask wraps definition-level rejections (malformed cron, unknown
// timezone, missing fields) so transports can map them to a client error.
var ErrInvalidTask = errors.New("service: invalid task definition")

// Executor runs one occurrence of a task synchronously and returns the
// settled execution record. Satisfied by *scheduler.Runner.
type Executor interface {
	Execute(ctx context.Context, t *task.Task) *task.Execution
}

// CreateRequest carries the fields of a new task definition.
type CreateRequest struct {
	Name           string      `json:"name"`
	Description    string      `json:"description,omitempty"`
	CronExpression string      `json:"cron_expression"`
	Timezone       string      `json:"timezone"`
	Config         task.Config `json:"config"`
}

// Config holds the service's collaborators.
type Config struct {
	Tasks      store.TaskStore
	Executions store.ExecutionStore
	Executor   Executor
	Logger     *slog.Logger
	Now        func() time.Time // injectable for testing
}

// TaskService mediates every user-initiated task operation. All methods
// scope their lookups to the calling user; a task owned by someone else is
// indistinguishable from a missing one (store.ErrTaskNotFound).
type TaskService struct {
	tasks      store.TaskStore
	executions store.ExecutionStore
	executor   Executor
	logger     *slog.Logger
	now        func() time.Time
}

// NewTaskService creates a TaskService. Stores and executor are mandatory.
func NewTaskService(cfg Config) (*TaskService, error) {
	if cfg.Tasks == nil || cfg.Executions == nil {
		return nil, errors.New("service: nil store")
	}
	if cfg.Executor == nil {
		return nil, errors.New("service: nil executor")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TaskService{
		tasks:      cfg.Tasks,
		executions: cfg.Executions,
		executor:   cfg.Executor,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}, nil
}

// Create validates and persists a new active task. The first occurrence is
// computed from the creation instant, so a schedule whose next match is
// "now" fires on the next poll tick.
func (s *TaskService) Create(ctx context.Context, userID string, req CreateRequest) (*task.Task, error) {
	t, err := task.New(userID, req.Name, req.CronExpression, req.Timezone, req.Config, req.Description)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTask, err)
	}

	nextRun, err := schedule.NextRun(t.CronExpression, t.Timezone, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTask, err)
	}
	t.NextRunAt = &nextRun

	if err := s.tasks.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("service: save task: %w", err)
	}

	s.logger.Info("service: task created",
		"task_id", t.ID,
		"user_id", userID,
		"next_run_at", nextRun,
	)
	return t, nil
}

// Get returns one of the user's tasks.
func (s *TaskService) Get(ctx context.Context, userID, id string) (*task.Task, error) {
	return s.tasks.FindByUserAndID(ctx, userID, id)
}

// List returns all of the user's tasks, disabled ones included.
func (s *TaskService) List(ctx context.Context, userID string) ([]*task.Task, error) {
	return s.tasks.FindByUser(ctx, userID)
}

// Update applies the request to one of the user's tasks. The request is
// validated as a whole before anything is written; a schedule change
// recomputes NextRunAt from the update instant in the same step.
func (s *TaskService) Update(ctx context.Context, userID, id string, req task.UpdateRequest) (*task.Task, error) {
	t, err := s.tasks.FindByUserAndID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := t.Apply(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTask, err)
	}

	if req.TouchesSchedule() {
		nextRun, err := schedule.NextRun(t.CronExpression, t.Timezone, s.now().UTC())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTask, err)
		}
		t.NextRunAt = &nextRun
	}

	if err := s.tasks.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("service: save task: %w", err)
	}

	s.logger.Info("service: task updated", "task_id", t.ID, "user_id", userID)
	return t, nil
}

// Pause suspends scheduling. The cursor and counters are retained.
func (s *TaskService) Pause(ctx context.Context, userID, id string) (*task.Task, error) {
	t, err := s.tasks.FindByUserAndID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	t.Pause()
	if err := s.tasks.UpdateStatus(ctx, t.ID, t.Status); err != nil {
		return nil, fmt.Errorf("service: pause task: %w", err)
	}

	s.logger.Info("service: task paused", "task_id", t.ID, "user_id", userID)
	return t, nil
}

// Resume reactivates a paused task. NextRunAt is recomputed from the resume
// instant: occurrences missed while paused are skipped, not replayed.
func (s *TaskService) Resume(ctx context.Context, userID, id string) (*task.Task, error) {
	t, err := s.tasks.FindByUserAndID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	t.Resume()
	nextRun, err := schedule.NextRun(t.CronExpression, t.Timezone, s.now().UTC())
	if err != nil {
		return nil, err
	}
	t.NextRunAt = &nextRun

	if err := s.tasks.UpdateStatus(ctx, t.ID, t.Status); err != nil {
		return nil, fmt.Errorf("service: resume task: %w", err)
	}
	if err := s.tasks.UpdateNextRun(ctx, t.ID, nextRun); err != nil {
		return nil, fmt.Errorf("service: resume task: %w", err)
	}

	s.logger.Info("service: task resumed",
		"task_id", t.ID,
		"user_id", userID,
		"next_run_at", nextRun,
	)
	return t, nil
}

// RunNow executes one occurrence immediately and synchronously, outside the
// polling cycle, and returns the settled execution record. The regular
// schedule is unaffected except for the cursor bookkeeping the execution
// itself performs. Overlap with a concurrently firing scheduled occurrence
// is possible and accepted.
func (s *TaskService) RunNow(ctx context.Context, userID, id string) (*task.Execution, error) {
	t, err := s.tasks.FindByUserAndID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("service: manual run requested", "task_id", t.ID, "user_id", userID)
	return s.executor.Execute(ctx, t), nil
}

// Delete removes the task definition. Execution history is kept and becomes
// orphaned; it remains reachable through the user-wide execution listing.
func (s *TaskService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.tasks.FindByUserAndID(ctx, userID, id); err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, id); err != nil {
		return fmt.Errorf("service: delete task: %w", err)
	}

	s.logger.Info("service: task deleted", "task_id", id, "user_id", userID)
	return nil
}

// ListExecutions returns the newest execution records of one of the user's
// tasks, newest first. limit <= 0 means no limit.
func (s *TaskService) ListExecutions(ctx context.Context, userID, id string, limit int) ([]*task.Execution, error) {
	if _, err := s.tasks.FindByUserAndID(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.executions.FindByTask(ctx, id, limit)
}

// ListUserExecutions returns the user's execution records across all tasks,
// orphaned ones included, newest first. limit <= 0 means no limit.
func (s *TaskService) ListUserExecutions(ctx context.Context, userID string, limit int) ([]*task.Execution, error) {
	return s.executions.FindByUser(ctx, userID, limit)
}
