// Package storetest provides in-memory store implementations for tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flemzord/recur/internal/store"
	"github.com/flemzord/recur/internal/task"
)

// TaskStore is a concurrency-safe in-memory store.TaskStore.
// Error fields allow fault injection per operation family.
type TaskStore struct {
	mu    sync.Mutex
	tasks map[string]*task.Task

	// SaveErr and FindErr, if set, are returned by the matching operations.
	// Use SetFindErr to change them while the store is shared with running
	// goroutines.
	SaveErr error
	FindErr error
}

// SetFindErr changes the injected finder error under the store's lock.
func (s *TaskStore) SetFindErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FindErr = err
}

// Compile-time interface checks.
var (
	_ store.TaskStore      = (*TaskStore)(nil)
	_ store.ExecutionStore = (*ExecutionStore)(nil)
)

// NewTaskStore returns an empty in-memory task store.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]*task.Task)}
}

func (s *TaskStore) Save(_ context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	cp := *t
	s.tasks[t.ID] = &cp
	return nil
}

func (s *TaskStore) FindByID(_ context.Context, id string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *TaskStore) FindByUserAndID(ctx context.Context, userID, id string) (*task.Task, error) {
	t, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, store.ErrTaskNotFound
	}
	return t, nil
}

func (s *TaskStore) FindByUser(_ context.Context, userID string) ([]*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	var out []*task.Task
	for _, t := range s.tasks {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *TaskStore) FindActive(_ context.Context) ([]*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	var out []*task.Task
	for _, t := range s.tasks {
		if t.Status == task.StatusActive {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *TaskStore) FindDue(_ context.Context, before time.Time) ([]*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	var out []*task.Task
	for _, t := range s.tasks {
		if t.Status != task.StatusActive || t.NextRunAt == nil {
			continue
		}
		if !t.NextRunAt.After(before) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRunAt.Before(*out[j].NextRunAt) })
	return out, nil
}

func (s *TaskStore) UpdateNextRun(_ context.Context, id string, nextRun time.Time) error {
	return s.mutate(id, func(t *task.Task) { t.NextRunAt = &nextRun })
}

func (s *TaskStore) UpdateLastRun(_ context.Context, id string, lastRun time.Time, sessionID string) error {
	return s.mutate(id, func(t *task.Task) {
		t.LastRunAt = &lastRun
		t.LastSessionID = sessionID
	})
}

func (s *TaskStore) UpdateStatus(_ context.Context, id string, status task.Status) error {
	return s.mutate(id, func(t *task.Task) { t.Status = status })
}

func (s *TaskStore) IncrementRunCount(_ context.Context, id string) error {
	return s.mutate(id, func(t *task.Task) { t.RunCount++ })
}

func (s *TaskStore) IncrementFailureCount(_ context.Context, id string) error {
	return s.mutate(id, func(t *task.Task) { t.FailureCount++ })
}

func (s *TaskStore) ResetFailureCount(_ context.Context, id string) error {
	return s.mutate(id, func(t *task.Task) { t.FailureCount = 0 })
}

func (s *TaskStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *TaskStore) mutate(id string, fn func(*task.Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	fn(t)
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// ExecutionStore is a concurrency-safe in-memory store.ExecutionStore.
type ExecutionStore struct {
	mu    sync.Mutex
	execs map[string]*task.Execution

	// SaveErr, if set, is returned by Save.
	SaveErr error
}

// NewExecutionStore returns an empty in-memory execution store.
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{execs: make(map[string]*task.Execution)}
}

func (s *ExecutionStore) Save(_ context.Context, e *task.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	cp := *e
	s.execs[e.ID] = &cp
	return nil
}

func (s *ExecutionStore) FindByID(_ context.Context, id string) (*task.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.execs[id]
	if !ok {
		return nil, store.ErrExecutionNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *ExecutionStore) FindByTask(_ context.Context, taskID string, limit int) ([]*task.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*task.Execution
	for _, e := range s.execs {
		if e.TaskID == taskID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return newestFirst(out, limit), nil
}

func (s *ExecutionStore) FindByUser(_ context.Context, userID string, limit int) ([]*task.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*task.Execution
	for _, e := range s.execs {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return newestFirst(out, limit), nil
}

// All returns every stored execution, newest first.
func (s *ExecutionStore) All() []*task.Execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*task.Execution
	for _, e := range s.execs {
		cp := *e
		out = append(out, &cp)
	}
	return newestFirst(out, 0)
}

func newestFirst(execs []*task.Execution, limit int) []*task.Execution {
	sort.Slice(execs, func(i, j int) bool {
		return execs[i].ScheduledAt.After(execs[j].ScheduledAt)
	})
	if limit > 0 && len(execs) > limit {
		execs = execs[:limit]
	}
	return execs
}
