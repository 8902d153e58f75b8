package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flemzord/recur/internal/store"
	"github.com/flemzord/recur/internal/task"
)

// ExecutionStore implements store.ExecutionStore on SQLite.
type ExecutionStore struct {
	db     *sql.DB
	logger *slog.Logger
}

const executionColumns = `id, task_id, user_id, session_id, status,
	scheduled_at, started_at, completed_at, result_summary, error_message,
	output_files, notification_sent, notification_error, created_at, updated_at`

// Save inserts or replaces the full execution row. The runner calls this
// at every state transition so a crash always leaves the latest persisted
// state behind as an audit trail.
func (s *ExecutionStore) Save(ctx context.Context, e *task.Execution) error {
	filesJSON, err := json.Marshal(e.OutputFiles)
	if err != nil {
		return fmt.Errorf("sqlite: marshal output files: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO executions (`+executionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TaskID, e.UserID, e.SessionID, string(e.Status),
		formatTime(e.ScheduledAt), formatNullableTime(e.StartedAt), formatNullableTime(e.CompletedAt),
		e.ResultSummary, e.ErrorMessage,
		string(filesJSON), boolToInt(e.NotificationSent), e.NotificationError,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save execution: %w", err)
	}
	return nil
}

// FindByID returns the execution or store.ErrExecutionNotFound.
func (s *ExecutionStore) FindByID(ctx context.Context, id string) (*task.Execution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM executions WHERE id = ?`, id)
	return scanExecution(row)
}

// FindByTask returns up to limit executions of a task, newest first.
// limit <= 0 means no limit.
func (s *ExecutionStore) FindByTask(ctx context.Context, taskID string, limit int) ([]*task.Execution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+executionColumns+` FROM executions
		WHERE task_id = ?
		ORDER BY scheduled_at DESC
		LIMIT ?`,
		taskID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("sqlite: find executions by task: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanExecutions(rows)
}

// FindByUser returns up to limit executions across all of a user's tasks,
// newest first. limit <= 0 means no limit.
func (s *ExecutionStore) FindByUser(ctx context.Context, userID string, limit int) ([]*task.Execution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+executionColumns+` FROM executions
		WHERE user_id = ?
		ORDER BY scheduled_at DESC
		LIMIT ?`,
		userID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("sqlite: find executions by user: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanExecutions(rows)
}

func scanExecution(row rowScanner) (*task.Execution, error) {
	var (
		e           task.Execution
		status      string
		scheduledAt string
		startedAt   sql.NullString
		completedAt sql.NullString
		filesJSON   string
		sent        int
		createdAt   string
		updatedAt   string
	)

	err := row.Scan(
		&e.ID, &e.TaskID, &e.UserID, &e.SessionID, &status,
		&scheduledAt, &startedAt, &completedAt, &e.ResultSummary, &e.ErrorMessage,
		&filesJSON, &sent, &e.NotificationError, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrExecutionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan execution: %w", err)
	}

	e.Status = task.ExecutionStatus(status)
	e.NotificationSent = sent != 0

	if filesJSON != "" && filesJSON != "[]" && filesJSON != "null" {
		if err := json.Unmarshal([]byte(filesJSON), &e.OutputFiles); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal output files: %w", err)
		}
	}

	if e.ScheduledAt, err = parseTime(scheduledAt); err != nil {
		return nil, fmt.Errorf("sqlite: parse scheduled_at: %w", err)
	}
	if e.StartedAt, err = parseNullableTime(startedAt); err != nil {
		return nil, fmt.Errorf("sqlite: parse started_at: %w", err)
	}
	if e.CompletedAt, err = parseNullableTime(completedAt); err != nil {
		return nil, fmt.Errorf("sqlite: parse completed_at: %w", err)
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("sqlite: parse created_at: %w", err)
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("sqlite: parse updated_at: %w", err)
	}

	return &e, nil
}

func scanExecutions(rows *sql.Rows) ([]*task.Execution, error) {
	var execs []*task.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: scan execution rows: %w", err)
	}
	return execs, nil
}

// sqlLimit maps the "no limit" convention (<= 0) to SQLite's LIMIT -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
