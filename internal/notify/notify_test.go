package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/recur/internal/store/storetest"
	"github.com/flemzord/recur/internal/task"
)

// recordingMailer captures sends and optionally fails.
type recordingMailer struct {
	mu    sync.Mutex
	sends []string
	err   error
}

func (m *recordingMailer) SendTaskNotification(_ context.Context, to, taskName, resultSummary, sessionID string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sends = append(m.sends, to+"|"+taskName+"|"+resultSummary+"|"+sessionID)
	return nil
}

func emailTask(t *testing.T) *task.Task {
	t.Helper()

	tk, err := task.New("user-1", "daily digest", "0 8 * * *", "UTC", task.Config{
		Prompt:            "digest the news",
		NotificationMode:  task.NotifyEmail,
		NotificationEmail: "me@example.com",
	}, "")
	if err != nil {
		t.Fatalf("task.New failed: %v", err)
	}
	return tk
}

func TestNotify_Success(t *testing.T) {
	t.Parallel()

	mailer := &recordingMailer{}
	execs := storetest.NewExecutionStore()
	d := NewDispatcher(mailer, execs, nil, nil)

	tk := emailTask(t)
	exec := task.NewExecution(tk.ID, tk.UserID, time.Now().UTC())
	exec.SessionID = "sess-9"
	exec.Complete("everything went fine")
	if err := execs.Save(context.Background(), exec); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	d.Notify(context.Background(), tk, exec)

	if !exec.NotificationSent {
		t.Error("NotificationSent not set")
	}
	if exec.NotificationError != "" {
		t.Errorf("unexpected notification error %q", exec.NotificationError)
	}
	if len(mailer.sends) != 1 || !strings.Contains(mailer.sends[0], "sess-9") {
		t.Errorf("sends = %v", mailer.sends)
	}

	persisted, err := execs.FindByID(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if !persisted.NotificationSent {
		t.Error("notification outcome not persisted")
	}
}

func TestNotify_FailureDoesNotAlterTerminalStatus(t *testing.T) {
	t.Parallel()

	mailer := &recordingMailer{err: errors.New("smtp: 535 authentication failed")}
	execs := storetest.NewExecutionStore()
	d := NewDispatcher(mailer, execs, nil, nil)

	tk := emailTask(t)
	exec := task.NewExecution(tk.ID, tk.UserID, time.Now().UTC())
	exec.Complete("fine")

	d.Notify(context.Background(), tk, exec)

	if exec.Status != task.ExecutionCompleted {
		t.Errorf("status = %q, terminal status must survive notification failure", exec.Status)
	}
	if exec.NotificationSent {
		t.Error("NotificationSent set despite failure")
	}
	if exec.NotificationError == "" {
		t.Error("NotificationError not recorded")
	}
}

func TestNotify_SkipsWhenModeNone(t *testing.T) {
	t.Parallel()

	mailer := &recordingMailer{}
	d := NewDispatcher(mailer, storetest.NewExecutionStore(), nil, nil)

	tk, err := task.New("user-1", "quiet", "0 8 * * *", "UTC", task.Config{Prompt: "p"}, "")
	if err != nil {
		t.Fatalf("task.New failed: %v", err)
	}
	exec := task.NewExecution(tk.ID, tk.UserID, time.Now().UTC())
	exec.Complete("fine")

	d.Notify(context.Background(), tk, exec)

	if len(mailer.sends) != 0 {
		t.Errorf("mailer invoked for notification mode none: %v", mailer.sends)
	}
	if exec.NotificationSent || exec.NotificationError != "" {
		t.Error("notification fields touched for mode none")
	}
}

func TestNotify_FailedExecutionSummarizesError(t *testing.T) {
	t.Parallel()

	mailer := &recordingMailer{}
	d := NewDispatcher(mailer, storetest.NewExecutionStore(), nil, nil)

	tk := emailTask(t)
	exec := task.NewExecution(tk.ID, tk.UserID, time.Now().UTC())
	exec.Fail("agent exploded")

	d.Notify(context.Background(), tk, exec)

	if len(mailer.sends) != 1 {
		t.Fatalf("sends = %v", mailer.sends)
	}
	if !strings.Contains(mailer.sends[0], "agent exploded") {
		t.Errorf("failure summary missing error: %q", mailer.sends[0])
	}
}

func TestNotify_NilMailerRecordsError(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil, storetest.NewExecutionStore(), nil, nil)

	tk := emailTask(t)
	exec := task.NewExecution(tk.ID, tk.UserID, time.Now().UTC())
	exec.Complete("fine")

	d.Notify(context.Background(), tk, exec)

	if exec.NotificationSent {
		t.Error("NotificationSent set without a mailer")
	}
	if exec.NotificationError == "" {
		t.Error("missing mailer should be recorded as a notification error")
	}
}

func TestSMTPMailer_Body(t *testing.T) {
	t.Parallel()

	m, err := NewSMTPMailer(SMTPConfig{
		Host: "smtp.example.com", Username: "u", Password: "p",
		BaseURL: "https://recur.example.com/",
	})
	if err != nil {
		t.Fatalf("NewSMTPMailer failed: %v", err)
	}

	body := m.body("daily <digest>", "all good", "sess-1", time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))

	if !strings.Contains(body, "daily &lt;digest&gt;") {
		t.Error("task name not HTML-escaped")
	}
	if !strings.Contains(body, "https://recur.example.com/chat/sess-1") {
		t.Error("session deep link missing")
	}
	if !strings.Contains(body, "2024-01-01 08:00:00") {
		t.Error("execution time missing")
	}
}

func TestNewSMTPMailer_IncompleteConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com"}); !errors.Is(err, ErrSend) {
		t.Errorf("error = %v, want ErrSend", err)
	}
}
