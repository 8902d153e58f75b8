package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/flemzord/recur/internal/store"
	"github.com/flemzord/recur/internal/task"
)

func openTestStores(t *testing.T) *Stores {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "recur.db"), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestTask(t *testing.T, userID string) *task.Task {
	t.Helper()

	tk, err := task.New(userID, "test task", "0 8 * * *", "UTC",
		task.Config{Prompt: "do the thing", SaveResult: true}, "")
	if err != nil {
		t.Fatalf("task.New failed: %v", err)
	}
	return tk
}

func TestOpen_MigratesIdempotently(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "recur.db")

	s1, err := Open(path, nil)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	_ = s1.Close()

	s2, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	_ = s2.Close()
}

func TestTaskStore_SaveAndFind(t *testing.T) {
	t.Parallel()

	s := openTestStores(t)
	ctx := context.Background()

	tk := newTestTask(t, "user-1")
	next := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tk.NextRunAt = &next

	if err := s.Tasks.Save(ctx, tk); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Tasks.FindByID(ctx, tk.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.Name != tk.Name || got.CronExpression != tk.CronExpression {
		t.Errorf("roundtrip mismatch: got %+v", got)
	}
	if got.NextRunAt == nil || !got.NextRunAt.Equal(next) {
		t.Errorf("next_run_at = %v, want %v", got.NextRunAt, next)
	}
	if got.Config.Prompt != "do the thing" {
		t.Errorf("config prompt = %q", got.Config.Prompt)
	}

	if _, err := s.Tasks.FindByID(ctx, "nope"); !errors.Is(err, store.ErrTaskNotFound) {
		t.Errorf("missing task error = %v, want ErrTaskNotFound", err)
	}
}

func TestTaskStore_FindByUserAndID_Authorization(t *testing.T) {
	t.Parallel()

	s := openTestStores(t)
	ctx := context.Background()

	tk := newTestTask(t, "owner")
	if err := s.Tasks.Save(ctx, tk); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := s.Tasks.FindByUserAndID(ctx, "owner", tk.ID); err != nil {
		t.Errorf("owner lookup failed: %v", err)
	}
	if _, err := s.Tasks.FindByUserAndID(ctx, "intruder", tk.ID); !errors.Is(err, store.ErrTaskNotFound) {
		t.Errorf("foreign lookup error = %v, want ErrTaskNotFound", err)
	}
}

func TestTaskStore_FindDue(t *testing.T) {
	t.Parallel()

	s := openTestStores(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := newTestTask(t, "u")
	due.NextRunAt = &past

	exactlyNow := newTestTask(t, "u")
	exactlyNow.NextRunAt = &now

	notYet := newTestTask(t, "u")
	notYet.NextRunAt = &future

	paused := newTestTask(t, "u")
	paused.NextRunAt = &past
	paused.Pause()

	disabled := newTestTask(t, "u")
	disabled.NextRunAt = &past
	disabled.Disable()

	noCursor := newTestTask(t, "u")

	for _, tk := range []*task.Task{due, exactlyNow, notYet, paused, disabled, noCursor} {
		if err := s.Tasks.Save(ctx, tk); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	got, err := s.Tasks.FindDue(ctx, now)
	if err != nil {
		t.Fatalf("FindDue failed: %v", err)
	}

	ids := make(map[string]bool, len(got))
	for _, tk := range got {
		ids[tk.ID] = true
	}

	if !ids[due.ID] {
		t.Error("past-due active task not returned")
	}
	if !ids[exactlyNow.ID] {
		t.Error("task due exactly now not returned (boundary must be inclusive)")
	}
	if ids[notYet.ID] {
		t.Error("future task returned")
	}
	if ids[paused.ID] {
		t.Error("paused task returned")
	}
	if ids[disabled.ID] {
		t.Error("disabled task returned")
	}
	if ids[noCursor.ID] {
		t.Error("task without scheduling cursor returned")
	}
}

func TestTaskStore_FindDue_SubSecondNow(t *testing.T) {
	t.Parallel()

	// A query instant with nanoseconds must still match a task due on the
	// exact second (the stored timestamps are fixed-width).
	s := openTestStores(t)
	ctx := context.Background()

	dueAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tk := newTestTask(t, "u")
	tk.NextRunAt = &dueAt
	if err := s.Tasks.Save(ctx, tk); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Tasks.FindDue(ctx, dueAt.Add(123*time.Millisecond))
	if err != nil {
		t.Fatalf("FindDue failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d tasks, want 1", len(got))
	}
}

func TestTaskStore_Counters(t *testing.T) {
	t.Parallel()

	s := openTestStores(t)
	ctx := context.Background()

	tk := newTestTask(t, "u")
	if err := s.Tasks.Save(ctx, tk); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	for range 3 {
		if err := s.Tasks.IncrementRunCount(ctx, tk.ID); err != nil {
			t.Fatalf("IncrementRunCount failed: %v", err)
		}
		if err := s.Tasks.IncrementFailureCount(ctx, tk.ID); err != nil {
			t.Fatalf("IncrementFailureCount failed: %v", err)
		}
	}

	got, err := s.Tasks.FindByID(ctx, tk.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.RunCount != 3 || got.FailureCount != 3 {
		t.Errorf("counters = run %d / failure %d, want 3 / 3", got.RunCount, got.FailureCount)
	}

	if err := s.Tasks.ResetFailureCount(ctx, tk.ID); err != nil {
		t.Fatalf("ResetFailureCount failed: %v", err)
	}

	got, _ = s.Tasks.FindByID(ctx, tk.ID)
	if got.FailureCount != 0 {
		t.Errorf("failure count = %d after reset, want 0", got.FailureCount)
	}
	if got.RunCount != 3 {
		t.Errorf("run count = %d after failure reset, want 3", got.RunCount)
	}
}

func TestTaskStore_MutationsOnMissingID(t *testing.T) {
	t.Parallel()

	s := openTestStores(t)
	ctx := context.Background()

	cases := map[string]error{
		"UpdateNextRun":         s.Tasks.UpdateNextRun(ctx, "ghost", time.Now()),
		"UpdateLastRun":         s.Tasks.UpdateLastRun(ctx, "ghost", time.Now(), "sess"),
		"UpdateStatus":          s.Tasks.UpdateStatus(ctx, "ghost", task.StatusPaused),
		"IncrementRunCount":     s.Tasks.IncrementRunCount(ctx, "ghost"),
		"IncrementFailureCount": s.Tasks.IncrementFailureCount(ctx, "ghost"),
		"ResetFailureCount":     s.Tasks.ResetFailureCount(ctx, "ghost"),
		"Delete":                s.Tasks.Delete(ctx, "ghost"),
	}

	for name, err := range cases {
		if !errors.Is(err, store.ErrTaskNotFound) {
			t.Errorf("%s error = %v, want ErrTaskNotFound", name, err)
		}
	}
}

func TestTaskStore_DeleteOrphansExecutions(t *testing.T) {
	t.Parallel()

	s := openTestStores(t)
	ctx := context.Background()

	tk := newTestTask(t, "u")
	if err := s.Tasks.Save(ctx, tk); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	exec := task.NewExecution(tk.ID, tk.UserID, time.Now().UTC())
	if err := s.Executions.Save(ctx, exec); err != nil {
		t.Fatalf("execution Save failed: %v", err)
	}

	if err := s.Tasks.Delete(ctx, tk.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	// History survives task deletion.
	got, err := s.Executions.FindByTask(ctx, tk.ID, 10)
	if err != nil {
		t.Fatalf("FindByTask failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d executions after task delete, want 1", len(got))
	}
}

func TestExecutionStore_Roundtrip(t *testing.T) {
	t.Parallel()

	s := openTestStores(t)
	ctx := context.Background()

	exec := task.NewExecution("task-1", "user-1", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))
	exec.Start()
	exec.SessionID = "sess-42"
	exec.OutputFiles = []string{"file-a", "file-b"}
	exec.Complete("done")
	exec.NotificationSent = true

	if err := s.Executions.Save(ctx, exec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Executions.FindByID(ctx, exec.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}

	if got.Status != task.ExecutionCompleted {
		t.Errorf("status = %q", got.Status)
	}
	if got.SessionID != "sess-42" {
		t.Errorf("session = %q", got.SessionID)
	}
	if len(got.OutputFiles) != 2 {
		t.Errorf("output files = %v", got.OutputFiles)
	}
	if !got.NotificationSent {
		t.Error("notification flag lost")
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Error("timestamps lost")
	}

	if _, err := s.Executions.FindByID(ctx, "ghost"); !errors.Is(err, store.ErrExecutionNotFound) {
		t.Errorf("missing execution error = %v, want ErrExecutionNotFound", err)
	}
}

func TestExecutionStore_NewestFirstWithLimit(t *testing.T) {
	t.Parallel()

	s := openTestStores(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range 5 {
		exec := task.NewExecution("task-1", "user-1", base.Add(time.Duration(i)*time.Hour))
		exec.ResultSummary = fmt.Sprintf("run %d", i)
		if err := s.Executions.Save(ctx, exec); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	got, err := s.Executions.FindByTask(ctx, "task-1", 3)
	if err != nil {
		t.Fatalf("FindByTask failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d executions, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].ScheduledAt.After(got[i-1].ScheduledAt) {
			t.Errorf("results not newest-first: %v before %v", got[i-1].ScheduledAt, got[i].ScheduledAt)
		}
	}
	if got[0].ResultSummary != "run 4" {
		t.Errorf("newest = %q, want run 4", got[0].ResultSummary)
	}

	byUser, err := s.Executions.FindByUser(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("FindByUser failed: %v", err)
	}
	if len(byUser) != 5 {
		t.Errorf("got %d executions by user, want 5", len(byUser))
	}
}
