// Package agenttest provides test doubles for the agent package.
package agenttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/flemzord/recur/internal/agent"
)

// FakeEngine is a configurable in-memory agent.Engine. The zero value
// succeeds immediately with an empty event stream.
type FakeEngine struct {
	// CreateSessionErr, if set, is returned by CreateSession.
	CreateSessionErr error

	// RunTurnErr, if set, is returned by RunTurn before any event flows.
	RunTurnErr error

	// StreamErr, if set, is delivered as the final event's Err.
	StreamErr error

	// Events are emitted in order before the stream terminates.
	Events []agent.Event

	// BlockUntil, if non-nil, delays stream completion until closed.
	// Lets tests hold an execution in the running state.
	BlockUntil chan struct{}

	mu       sync.Mutex
	sessions int
	turns    []TurnCall
}

// TurnCall records one RunTurn invocation.
type TurnCall struct {
	SessionID   string
	UserID      string
	Prompt      string
	Attachments []string
}

// Compile-time interface check.
var _ agent.Engine = (*FakeEngine)(nil)

// CreateSession implements agent.Engine.
func (f *FakeEngine) CreateSession(_ context.Context, userID string) (agent.Session, error) {
	if f.CreateSessionErr != nil {
		return agent.Session{}, f.CreateSessionErr
	}

	f.mu.Lock()
	f.sessions++
	n := f.sessions
	f.mu.Unlock()

	return agent.Session{ID: fmt.Sprintf("session-%d", n), UserID: userID}, nil
}

// RunTurn implements agent.Engine.
func (f *FakeEngine) RunTurn(ctx context.Context, sessionID, userID, prompt string, attachments []string) (<-chan agent.Event, error) {
	if f.RunTurnErr != nil {
		return nil, f.RunTurnErr
	}

	f.mu.Lock()
	f.turns = append(f.turns, TurnCall{
		SessionID:   sessionID,
		UserID:      userID,
		Prompt:      prompt,
		Attachments: attachments,
	})
	f.mu.Unlock()

	events := make(chan agent.Event)
	go func() {
		defer close(events)

		if f.BlockUntil != nil {
			select {
			case <-f.BlockUntil:
			case <-ctx.Done():
				events <- agent.Event{Err: ctx.Err()}
				return
			}
		}

		for _, ev := range f.Events {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}

		if f.StreamErr != nil {
			events <- agent.Event{Err: f.StreamErr}
		}
	}()
	return events, nil
}

// SessionCount returns the number of sessions created.
func (f *FakeEngine) SessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

// Turns returns a copy of recorded RunTurn calls.
func (f *FakeEngine) Turns() []TurnCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TurnCall(nil), f.turns...)
}
