// Package task defines the recurring-task domain model: task definitions,
// per-occurrence execution records, and their state machines.
package task

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flemzord/recur/internal/schedule"
)

// Status is the lifecycle state of a task definition.
type Status string

// Task statuses. Only active tasks are eligible for due-task polling.
const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusDisabled Status = "disabled"
)

// NotificationMode selects the side channel used after an occurrence finishes.
type NotificationMode string

// Notification modes.
const (
	NotifyNone  NotificationMode = "none"
	NotifyEmail NotificationMode = "email"
)

// Config holds the execution configuration of a task: what the agent is
// asked to do each occurrence, and how the outcome is delivered.
type Config struct {
	Prompt            string           `json:"prompt" yaml:"prompt"`
	SaveResult        bool             `json:"save_result" yaml:"save_result"`
	NotificationMode  NotificationMode `json:"notification_mode" yaml:"notification_mode"`
	NotificationEmail string           `json:"notification_email,omitempty" yaml:"notification_email,omitempty"`
	Attachments       []string         `json:"attachments,omitempty" yaml:"attachments,omitempty"`
}

// Task is a recurring job definition owned by a user. The scheduling
// cursor (NextRunAt/LastRunAt/LastSessionID) and the counters are mutated
// by the execution engine; everything else only changes through explicit
// user operations.
type Task struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	CronExpression string `json:"cron_expression"`
	Timezone       string `json:"timezone"`
	Config         Config `json:"config"`
	Status         Status `json:"status"`

	NextRunAt     *time.Time `json:"next_run_at,omitempty"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastSessionID string     `json:"last_session_id,omitempty"`

	// RunCount counts every attempt, success or failure. FailureCount
	// counts consecutive failures and resets to zero on success.
	RunCount     int `json:"run_count"`
	FailureCount int `json:"failure_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New constructs a validated active task with a fresh identifier.
// The scheduling cursor is left unset; callers compute the first
// NextRunAt via schedule.NextRun before persisting.
func New(userID, name, cronExpr, tz string, cfg Config, description string) (*Task, error) {
	now := time.Now().UTC()
	t := &Task{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           name,
		Description:    description,
		CronExpression: strings.TrimSpace(cronExpr),
		Timezone:       tz,
		Config:         cfg,
		Status:         StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks structural validity: required fields, a parseable 5- or
// 6-field cron expression, a known timezone, and a consistent notification
// configuration.
func (t *Task) Validate() error {
	var errs []error

	if t.UserID == "" {
		errs = append(errs, errors.New("task: user id is required"))
	}
	if t.Name == "" {
		errs = append(errs, errors.New("task: name is required"))
	}
	if t.Config.Prompt == "" {
		errs = append(errs, errors.New("task: prompt is required"))
	}
	if err := schedule.Validate(t.CronExpression, t.Timezone); err != nil {
		errs = append(errs, err)
	}

	switch t.Config.NotificationMode {
	case NotifyNone, NotifyEmail, "":
	default:
		errs = append(errs, fmt.Errorf("task: unknown notification mode %q", t.Config.NotificationMode))
	}
	if t.Config.NotificationMode == NotifyEmail && t.Config.NotificationEmail == "" {
		errs = append(errs, errors.New("task: email notification requires an address"))
	}

	return errors.Join(errs...)
}

// Pause marks the task paused. The scheduling cursor and counters are
// retained; the task simply stops being returned by due-task queries.
func (t *Task) Pause() {
	t.Status = StatusPaused
	t.UpdatedAt = time.Now().UTC()
}

// Resume reactivates a paused task. Callers must recompute NextRunAt from
// the resume instant: a task paused across several occurrences fires on
// the next future occurrence, not once per missed one.
func (t *Task) Resume() {
	t.Status = StatusActive
	t.UpdatedAt = time.Now().UTC()
}

// Disable soft-deletes the task. There is no re-enable path.
func (t *Task) Disable() {
	t.Status = StatusDisabled
	t.UpdatedAt = time.Now().UTC()
}
