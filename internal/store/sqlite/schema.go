package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id              TEXT PRIMARY KEY,
		user_id         TEXT    NOT NULL,
		name            TEXT    NOT NULL,
		description     TEXT    NOT NULL DEFAULT '',
		cron_expression TEXT    NOT NULL,
		timezone        TEXT    NOT NULL DEFAULT 'UTC',
		config          TEXT    NOT NULL DEFAULT '{}',
		status          TEXT    NOT NULL DEFAULT 'active',
		next_run_at     TEXT,
		last_run_at     TEXT,
		last_session_id TEXT    NOT NULL DEFAULT '',
		run_count       INTEGER NOT NULL DEFAULT 0,
		failure_count   INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT    NOT NULL,
		updated_at      TEXT    NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id)`,

	// Due-task query path: status equality plus next_run_at range scan.
	`CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(status, next_run_at)`,

	`CREATE TABLE IF NOT EXISTS executions (
		id                 TEXT PRIMARY KEY,
		task_id            TEXT    NOT NULL,
		user_id            TEXT    NOT NULL,
		session_id         TEXT    NOT NULL DEFAULT '',
		status             TEXT    NOT NULL DEFAULT 'pending',
		scheduled_at       TEXT    NOT NULL,
		started_at         TEXT,
		completed_at       TEXT,
		result_summary     TEXT    NOT NULL DEFAULT '',
		error_message      TEXT    NOT NULL DEFAULT '',
		output_files       TEXT    NOT NULL DEFAULT '[]',
		notification_sent  INTEGER NOT NULL DEFAULT 0,
		notification_error TEXT    NOT NULL DEFAULT '',
		created_at         TEXT    NOT NULL,
		updated_at         TEXT    NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_executions_task ON executions(task_id, scheduled_at DESC)`,

	`CREATE INDEX IF NOT EXISTS idx_executions_user ON executions(user_id, scheduled_at DESC)`,
}

// migrate creates or updates the database schema to the latest version.
// All DDL uses IF NOT EXISTS, making migration idempotent.
func migrate(db *sql.DB) error {
	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}
