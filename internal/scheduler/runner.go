// Package scheduler contains the execution engine for recurring tasks:
// the runner that drives one occurrence through its state machine, and
// the poller that discovers due tasks.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/recur/internal/agent"
	"github.com/flemzord/recur/internal/schedule"
	"github.com/flemzord/recur/internal/store"
	"github.com/flemzord/recur/internal/task"
)

// Notifier delivers the post-execution side-channel notification.
// Implementations must be best-effort and must not return errors.
type Notifier interface {
	Notify(ctx context.Context, t *task.Task, e *task.Execution)
}

// RunnerConfig holds the runner's collaborators. Engine and Notifier are
// required at construction; there is no post-construction wiring.
type RunnerConfig struct {
	Tasks      store.TaskStore
	Executions store.ExecutionStore
	Engine     agent.Engine
	Notifier   Notifier
	Metrics    *Metrics
	Logger     *slog.Logger
	Now        func() time.Time // injectable for testing
}

// Runner executes one occurrence of a task: it creates the execution
// record, runs the agent turn, settles the record's terminal state,
// advances the task's scheduling cursor, and triggers notification.
//
// Runner is a failure boundary: nothing that happens while running an
// occurrence escapes to the caller. All failure is captured into the
// execution record.
type Runner struct {
	tasks      store.TaskStore
	executions store.ExecutionStore
	engine     agent.Engine
	notifier   Notifier
	metrics    *Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewRunner creates a Runner. Engine and Notifier are mandatory.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Tasks == nil || cfg.Executions == nil {
		return nil, errors.New("scheduler: nil store")
	}
	if cfg.Engine == nil {
		return nil, errors.New("scheduler: nil agent engine")
	}
	if cfg.Notifier == nil {
		return nil, errors.New("scheduler: nil notifier")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Runner{
		tasks:      cfg.Tasks,
		executions: cfg.Executions,
		engine:     cfg.Engine,
		notifier:   cfg.Notifier,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		tracer:     otel.Tracer("recur/scheduler"),
		now:        cfg.Now,
	}, nil
}

// Execute runs one occurrence of t to completion and returns the settled
// execution record. It never returns an error: agent failures become a
// failed record, and store failures while bookkeeping are logged.
func (r *Runner) Execute(ctx context.Context, t *task.Task) *task.Execution {
	scheduledAt := r.now().UTC()
	if t.NextRunAt != nil {
		scheduledAt = *t.NextRunAt
	}

	exec := task.NewExecution(t.ID, t.UserID, scheduledAt)

	// Persist before doing anything so a crash mid-run still leaves an
	// audit trail.
	r.persistExecution(ctx, exec)

	ctx, span := r.tracer.Start(ctx, "recur.execute",
		trace.WithAttributes(
			attribute.String("task.id", t.ID),
			attribute.String("task.user_id", t.UserID),
			attribute.String("execution.id", exec.ID),
		))
	defer span.End()

	exec.Start()
	r.persistExecution(ctx, exec)
	r.metrics.ExecutionsStarted.Inc()
	started := r.now()

	r.logger.Info("scheduler: execution started",
		"task_id", t.ID,
		"execution_id", exec.ID,
	)

	turnErr := r.runTurn(ctx, t, exec)

	if turnErr != nil {
		exec.Fail(turnErr.Error())
		r.metrics.ExecutionsFailed.Inc()
		span.RecordError(turnErr)
		if err := r.tasks.IncrementFailureCount(ctx, t.ID); err != nil {
			r.logger.Error("scheduler: increment failure count failed", "task_id", t.ID, "error", err)
		}
		r.logger.Warn("scheduler: execution failed",
			"task_id", t.ID,
			"execution_id", exec.ID,
			"error", turnErr,
		)
	} else {
		exec.Complete(fmt.Sprintf("Task executed successfully in session %s", exec.SessionID))
		r.metrics.ExecutionsCompleted.Inc()
		if err := r.tasks.ResetFailureCount(ctx, t.ID); err != nil {
			r.logger.Error("scheduler: reset failure count failed", "task_id", t.ID, "error", err)
		}
		r.logger.Info("scheduler: execution completed",
			"task_id", t.ID,
			"execution_id", exec.ID,
			"session_id", exec.SessionID,
		)
	}

	r.metrics.ExecutionSeconds.Observe(r.now().Sub(started).Seconds())

	// Unconditional bookkeeping: success or failure, the record reaches
	// its final persisted state and the recurrence continues.
	r.persistExecution(ctx, exec)
	r.advanceCursor(ctx, t, exec)

	r.notifier.Notify(ctx, t, exec)

	return exec
}

// runTurn creates a session and drains one agent turn. A nil return means
// the turn finished successfully.
func (r *Runner) runTurn(ctx context.Context, t *task.Task, exec *task.Execution) error {
	session, err := r.engine.CreateSession(ctx, t.UserID)
	if err != nil {
		return err
	}
	exec.SessionID = session.ID

	events, err := r.engine.RunTurn(ctx, session.ID, t.UserID, t.Config.Prompt, t.Config.Attachments)
	if err != nil {
		return err
	}

	// Drain to completion. Individual events belong to the chat layer;
	// only stream-level failures matter here.
	var streamErr error
	for ev := range events {
		if ev.Err != nil {
			streamErr = ev.Err
		}
	}
	return streamErr
}

// advanceCursor performs step-6 bookkeeping on the task: attempt counter,
// last-run cursor, and the recomputed next occurrence.
func (r *Runner) advanceCursor(ctx context.Context, t *task.Task, exec *task.Execution) {
	if err := r.tasks.IncrementRunCount(ctx, t.ID); err != nil {
		r.logger.Error("scheduler: increment run count failed", "task_id", t.ID, "error", err)
	}
	if err := r.tasks.UpdateLastRun(ctx, t.ID, r.now().UTC(), exec.SessionID); err != nil {
		r.logger.Error("scheduler: update last run failed", "task_id", t.ID, "error", err)
	}

	nextRun, err := schedule.NextRun(t.CronExpression, t.Timezone, r.now().Add(time.Second))
	if err != nil {
		// Validated at create/update time; only reachable if the stored
		// definition was corrupted out of band.
		r.logger.Error("scheduler: next run computation failed",
			"task_id", t.ID,
			"cron", t.CronExpression,
			"error", err,
		)
		return
	}
	if err := r.tasks.UpdateNextRun(ctx, t.ID, nextRun); err != nil {
		r.logger.Error("scheduler: update next run failed", "task_id", t.ID, "error", err)
	}
}

func (r *Runner) persistExecution(ctx context.Context, exec *task.Execution) {
	if err := r.executions.Save(ctx, exec); err != nil {
		r.logger.Error("scheduler: persist execution failed",
			"execution_id", exec.ID,
			"status", exec.Status,
			"error", err,
		)
	}
}
