package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flemzord/recur/internal/service"
	"github.com/flemzord/recur/internal/store/storetest"
	"github.com/flemzord/recur/internal/task"
)

// syncExecutor settles every run as completed without touching an agent,
// persisting the record the way the real runner does.
type syncExecutor struct {
	execs *storetest.ExecutionStore
}

func (e *syncExecutor) Execute(ctx context.Context, t *task.Task) *task.Execution {
	exec := task.NewExecution(t.ID, t.UserID, time.Now().UTC())
	exec.Start()
	exec.Complete("done")
	_ = e.execs.Save(ctx, exec)
	return exec
}

const testToken = "test-token"

func newTestServer(t *testing.T) (*httptest.Server, *storetest.TaskStore) {
	t.Helper()

	tasks := storetest.NewTaskStore()
	execs := storetest.NewExecutionStore()

	svc, err := service.NewTaskService(service.Config{
		Tasks:      tasks,
		Executions: execs,
		Executor:   &syncExecutor{execs: execs},
	})
	if err != nil {
		t.Fatalf("NewTaskService failed: %v", err)
	}

	srv, err := NewServer(Config{
		Listen:    "127.0.0.1:0",
		AuthToken: testToken,
	}, svc, prometheus.NewRegistry(), nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tasks
}

// do performs an authenticated request as the given user.
func do(t *testing.T, ts *httptest.Server, method, path, user string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}

	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func createTask(t *testing.T, ts *httptest.Server, user string) *task.Task {
	t.Helper()

	resp := do(t, ts, http.MethodPost, "/scheduled-tasks", user, service.CreateRequest{
		Name:           "digest",
		CronExpression: "0 8 * * *",
		Timezone:       "UTC",
		Config:         task.Config{Prompt: "summarize"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	return decode[*task.Task](t, resp)
}

func TestServer_AuthRequired(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/scheduled-tasks", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	req.Header.Set("X-User-ID", "user-1")

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestServer_UserHeaderRequired(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)

	resp := do(t, ts, http.MethodGet, "/scheduled-tasks", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_HealthAndMetricsAreOpen(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)

	for _, path := range []string{"/health", "/metrics"} {
		resp, err := ts.Client().Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestServer_CreateAndGet(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	created := createTask(t, ts, "user-1")

	if created.NextRunAt == nil {
		t.Error("created task has no next_run_at")
	}

	resp := do(t, ts, http.MethodGet, "/scheduled-tasks/"+created.ID, "user-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	got := decode[*task.Task](t, resp)
	if got.ID != created.ID {
		t.Errorf("got task %q, want %q", got.ID, created.ID)
	}
}

func TestServer_CreateRejectsBadCron(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)

	resp := do(t, ts, http.MethodPost, "/scheduled-tasks", "user-1", service.CreateRequest{
		Name:           "broken",
		CronExpression: "every tuesday",
		Timezone:       "UTC",
		Config:         task.Config{Prompt: "p"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_CrossUserIsNotFound(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	created := createTask(t, ts, "user-1")

	resp := do(t, ts, http.MethodGet, "/scheduled-tasks/"+created.ID, "user-2", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_List(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	createTask(t, ts, "user-1")
	createTask(t, ts, "user-1")

	resp := do(t, ts, http.MethodGet, "/scheduled-tasks", "user-1", nil)
	got := decode[[]*task.Task](t, resp)
	if len(got) != 2 {
		t.Errorf("got %d tasks, want 2", len(got))
	}

	resp = do(t, ts, http.MethodGet, "/scheduled-tasks", "user-3", nil)
	if empty := decode[[]*task.Task](t, resp); len(empty) != 0 {
		t.Errorf("got %d tasks for empty user, want 0", len(empty))
	}
}

func TestServer_Update(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	created := createTask(t, ts, "user-1")

	name := "renamed"
	resp := do(t, ts, http.MethodPut, "/scheduled-tasks/"+created.ID, "user-1", task.UpdateRequest{Name: &name})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, want 200", resp.StatusCode)
	}
	got := decode[*task.Task](t, resp)
	if got.Name != "renamed" {
		t.Errorf("name = %q, want renamed", got.Name)
	}

	bad := "not cron"
	resp = do(t, ts, http.MethodPut, "/scheduled-tasks/"+created.ID, "user-1", task.UpdateRequest{CronExpression: &bad})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad update status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_PauseResumeRun(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	created := createTask(t, ts, "user-1")

	resp := do(t, ts, http.MethodPost, "/scheduled-tasks/"+created.ID+"/pause", "user-1", nil)
	if got := decode[*task.Task](t, resp); got.Status != task.StatusPaused {
		t.Errorf("status after pause = %q", got.Status)
	}

	resp = do(t, ts, http.MethodPost, "/scheduled-tasks/"+created.ID+"/resume", "user-1", nil)
	if got := decode[*task.Task](t, resp); got.Status != task.StatusActive {
		t.Errorf("status after resume = %q", got.Status)
	}

	resp = do(t, ts, http.MethodPost, "/scheduled-tasks/"+created.ID+"/run", "user-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("run status = %d, want 200", resp.StatusCode)
	}
	exec := decode[*task.Execution](t, resp)
	if exec.Status != task.ExecutionCompleted {
		t.Errorf("execution status = %q, want completed", exec.Status)
	}
}

func TestServer_Delete(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	created := createTask(t, ts, "user-1")

	resp := do(t, ts, http.MethodDelete, "/scheduled-tasks/"+created.ID, "user-1", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}

	resp = do(t, ts, http.MethodGet, "/scheduled-tasks/"+created.ID, "user-1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_ExecutionListings(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t)
	created := createTask(t, ts, "user-1")

	for range 3 {
		resp := do(t, ts, http.MethodPost, "/scheduled-tasks/"+created.ID+"/run", "user-1", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("run status = %d", resp.StatusCode)
		}
	}

	resp := do(t, ts, http.MethodGet, fmt.Sprintf("/scheduled-tasks/%s/executions?limit=2", created.ID), "user-1", nil)
	if got := decode[[]*task.Execution](t, resp); len(got) != 2 {
		t.Errorf("got %d task executions, want 2 (limited)", len(got))
	}

	resp = do(t, ts, http.MethodGet, "/scheduled-tasks/executions", "user-1", nil)
	if got := decode[[]*task.Execution](t, resp); len(got) != 3 {
		t.Errorf("got %d user executions, want 3", len(got))
	}
}
