// Package sqlite implements the task and execution stores on SQLite using
// modernc.org/sqlite (pure Go, no CGO) with WAL mode and a single write
// connection.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/flemzord/recur/internal/store"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const defaultBusyTimeout = 5000 // milliseconds

// Compile-time interface guards.
var (
	_ store.TaskStore      = (*TaskStore)(nil)
	_ store.ExecutionStore = (*ExecutionStore)(nil)
)

// Stores bundles the two repositories backed by one database handle.
type Stores struct {
	Tasks      *TaskStore
	Executions *ExecutionStore
	db         *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path and returns
// the stores backed by it. The database uses WAL mode, a 5 s busy timeout,
// and a single connection since SQLite serialises writes anyway. The
// schema is migrated automatically.
func Open(path string, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Stores{
		Tasks:      &TaskStore{db: db, logger: logger},
		Executions: &ExecutionStore{db: db, logger: logger},
		db:         db,
	}, nil
}

// Close releases the underlying database handle.
func (s *Stores) Close() error {
	return s.db.Close()
}
