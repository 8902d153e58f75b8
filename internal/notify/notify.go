// Package notify delivers best-effort side-channel notifications after an
// occurrence finishes. Delivery failures are recorded on the execution
// record and never alter its terminal status.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/flemzord/recur/internal/store"
	"github.com/flemzord/recur/internal/task"
)

// ErrSend reports a transport or authentication failure while sending.
var ErrSend = errors.New("notify: send failed")

// Mailer hands a formatted task notification to the outbound mail
// transport.
type Mailer interface {
	SendTaskNotification(ctx context.Context, to, taskName, resultSummary, sessionID string, executionTime time.Time) error
}

// Dispatcher routes execution outcomes to the configured side channel.
type Dispatcher struct {
	mailer     Mailer
	executions store.ExecutionStore
	metrics    *Metrics
	logger     *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil mailer disables email delivery
// (attempts are recorded as failed on the execution record). A nil metrics
// gets unregistered defaults.
func NewDispatcher(mailer Mailer, executions store.ExecutionStore, metrics *Metrics, logger *slog.Logger) *Dispatcher {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{mailer: mailer, executions: executions, metrics: metrics, logger: logger}
}

// Notify sends the notification configured on the task, if any, and
// records the outcome on the execution record. It never returns an error:
// by the time it runs, the execution's terminal status is settled and
// nothing here may disturb it.
func (d *Dispatcher) Notify(ctx context.Context, t *task.Task, e *task.Execution) {
	if t.Config.NotificationMode != task.NotifyEmail || t.Config.NotificationEmail == "" {
		return
	}

	summary := e.ResultSummary
	if e.Status == task.ExecutionFailed {
		summary = "Task failed: " + e.ErrorMessage
	}

	when := executionTime(e)

	var err error
	if d.mailer == nil {
		err = errors.New("notify: no mailer configured")
	} else {
		err = d.mailer.SendTaskNotification(ctx, t.Config.NotificationEmail, t.Name, summary, e.SessionID, when)
	}

	if err != nil {
		e.NotificationError = err.Error()
		e.UpdatedAt = time.Now().UTC()
		d.metrics.Failed.Inc()
		d.logger.Warn("notify: delivery failed",
			"task_id", t.ID,
			"execution_id", e.ID,
			"error", err,
		)
	} else {
		e.NotificationSent = true
		e.UpdatedAt = time.Now().UTC()
		d.metrics.Sent.Inc()
		d.logger.Info("notify: delivered",
			"task_id", t.ID,
			"execution_id", e.ID,
			"to", t.Config.NotificationEmail,
		)
	}

	if saveErr := d.executions.Save(ctx, e); saveErr != nil {
		d.logger.Error("notify: persist notification outcome failed",
			"execution_id", e.ID,
			"error", saveErr,
		)
	}
}

func executionTime(e *task.Execution) time.Time {
	switch {
	case e.CompletedAt != nil:
		return *e.CompletedAt
	case e.StartedAt != nil:
		return *e.StartedAt
	default:
		return e.ScheduledAt
	}
}
