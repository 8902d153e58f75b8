// Package agent defines the contract to the external agent engine: create
// a session, run one conversation turn, and stream its progress events.
// The scheduling engine drains the event stream to detect completion but
// never interprets individual events; those belong to the chat UI layer.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrUnavailable reports that the agent engine cannot be reached.
var ErrUnavailable = errors.New("agent: engine unavailable")

// Session is a conversation container created per occurrence.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is one progress item emitted while a turn runs. Err is set on
// stream-level failures (the turn could not finish); consumers that only
// care about completion drain the channel and keep the last non-nil Err.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	Err  error           `json:"-"`
}

// Engine starts sessions and runs conversation turns.
//
// RunTurn returns a finite event channel: it is closed when the turn is
// complete, whether it succeeded or failed. A non-nil error return means
// the turn never started.
type Engine interface {
	CreateSession(ctx context.Context, userID string) (Session, error)
	RunTurn(ctx context.Context, sessionID, userID, prompt string, attachments []string) (<-chan Event, error)
}
