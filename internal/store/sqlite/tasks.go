package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/recur/internal/store"
	"github.com/flemzord/recur/internal/task"
)

// TaskStore implements store.TaskStore on SQLite.
type TaskStore struct {
	db     *sql.DB
	logger *slog.Logger
}

const taskColumns = `id, user_id, name, description, cron_expression, timezone,
	config, status, next_run_at, last_run_at, last_session_id,
	run_count, failure_count, created_at, updated_at`

// Save inserts or replaces the full task row.
func (s *TaskStore) Save(ctx context.Context, t *task.Task) error {
	cfgJSON, err := json.Marshal(t.Config)
	if err != nil {
		return fmt.Errorf("sqlite: marshal task config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Name, t.Description, t.CronExpression, t.Timezone,
		string(cfgJSON), string(t.Status),
		formatNullableTime(t.NextRunAt), formatNullableTime(t.LastRunAt), t.LastSessionID,
		t.RunCount, t.FailureCount,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save task: %w", err)
	}
	return nil
}

// FindByID returns the task or store.ErrTaskNotFound.
func (s *TaskStore) FindByID(ctx context.Context, id string) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

// FindByUserAndID returns the task only if it belongs to the given user.
func (s *TaskStore) FindByUserAndID(ctx context.Context, userID, id string) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	return scanTask(row)
}

// FindByUser returns all tasks owned by userID, newest first.
func (s *TaskStore) FindByUser(ctx context.Context, userID string) ([]*task.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: find tasks by user: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTasks(rows)
}

// FindActive returns all tasks with status active.
func (s *TaskStore) FindActive(ctx context.Context) ([]*task.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE status = ?`, string(task.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("sqlite: find active tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTasks(rows)
}

// FindDue returns active tasks whose next_run_at is at or before the given
// instant. Tasks without a scheduling cursor are never due.
func (s *TaskStore) FindDue(ctx context.Context, before time.Time) ([]*task.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE status = ? AND next_run_at IS NOT NULL AND next_run_at <= ?
		ORDER BY next_run_at`,
		string(task.StatusActive), formatTime(before.UTC()))
	if err != nil {
		return nil, fmt.Errorf("sqlite: find due tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTasks(rows)
}

// UpdateNextRun advances the scheduling cursor.
func (s *TaskStore) UpdateNextRun(ctx context.Context, id string, nextRun time.Time) error {
	return s.updateOne(ctx, `
		UPDATE tasks SET next_run_at = ?, updated_at = ? WHERE id = ?`,
		formatTime(nextRun.UTC()), formatTime(time.Now().UTC()), id)
}

// UpdateLastRun records the instant and session of the latest attempt.
func (s *TaskStore) UpdateLastRun(ctx context.Context, id string, lastRun time.Time, sessionID string) error {
	return s.updateOne(ctx, `
		UPDATE tasks SET last_run_at = ?, last_session_id = ?, updated_at = ? WHERE id = ?`,
		formatTime(lastRun.UTC()), sessionID, formatTime(time.Now().UTC()), id)
}

// UpdateStatus sets the task status.
func (s *TaskStore) UpdateStatus(ctx context.Context, id string, status task.Status) error {
	return s.updateOne(ctx, `
		UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now().UTC()), id)
}

// IncrementRunCount adds one attempt to the total counter.
func (s *TaskStore) IncrementRunCount(ctx context.Context, id string) error {
	return s.updateOne(ctx, `
		UPDATE tasks SET run_count = run_count + 1, updated_at = ? WHERE id = ?`,
		formatTime(time.Now().UTC()), id)
}

// IncrementFailureCount adds one consecutive failure.
func (s *TaskStore) IncrementFailureCount(ctx context.Context, id string) error {
	return s.updateOne(ctx, `
		UPDATE tasks SET failure_count = failure_count + 1, updated_at = ? WHERE id = ?`,
		formatTime(time.Now().UTC()), id)
}

// ResetFailureCount zeroes the consecutive-failure counter.
func (s *TaskStore) ResetFailureCount(ctx context.Context, id string) error {
	return s.updateOne(ctx, `
		UPDATE tasks SET failure_count = 0, updated_at = ? WHERE id = ?`,
		formatTime(time.Now().UTC()), id)
}

// Delete removes the task definition. Execution history is deliberately
// left in place (orphaned, not cascade-deleted).
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	return s.updateOne(ctx, `DELETE FROM tasks WHERE id = ?`, id)
}

// updateOne runs a single-row mutation and maps zero affected rows to
// store.ErrTaskNotFound.
func (s *TaskStore) updateOne(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite: update task: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrTaskNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var (
		t         task.Task
		cfgJSON   string
		status    string
		nextRun   sql.NullString
		lastRun   sql.NullString
		createdAt string
		updatedAt string
	)

	err := row.Scan(
		&t.ID, &t.UserID, &t.Name, &t.Description, &t.CronExpression, &t.Timezone,
		&cfgJSON, &status, &nextRun, &lastRun, &t.LastSessionID,
		&t.RunCount, &t.FailureCount, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan task: %w", err)
	}

	if err := json.Unmarshal([]byte(cfgJSON), &t.Config); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal task config: %w", err)
	}
	t.Status = task.Status(status)

	if t.NextRunAt, err = parseNullableTime(nextRun); err != nil {
		return nil, fmt.Errorf("sqlite: parse next_run_at: %w", err)
	}
	if t.LastRunAt, err = parseNullableTime(lastRun); err != nil {
		return nil, fmt.Errorf("sqlite: parse last_run_at: %w", err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("sqlite: parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("sqlite: parse updated_at: %w", err)
	}

	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]*task.Task, error) {
	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: scan task rows: %w", err)
	}
	return tasks, nil
}

// Timestamps are stored as fixed-width RFC 3339 UTC strings so that
// lexical order in SQL matches chronological order (the FindDue
// comparison depends on it). RFC3339Nano is unsuitable here: it strips
// trailing zeros, and "05Z" sorts after "05.5Z".
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
