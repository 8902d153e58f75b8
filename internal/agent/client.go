package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
)

// Client talks to a remote agent gateway: plain HTTP for session creation,
// a websocket per turn for event streaming.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Compile-time interface check.
var _ Engine = (*Client)(nil)

// NewClient creates a Client for the gateway at baseURL (http:// or
// https://). token is sent as a bearer credential; empty disables auth.
func NewClient(baseURL, token string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("agent: invalid base URL %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// CreateSession asks the gateway for a fresh conversation session.
func (c *Client) CreateSession(ctx context.Context, userID string) (Session, error) {
	body, _ := json.Marshal(map[string]string{"user_id": userID})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/sessions", bytes.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("agent: build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Session{}, fmt.Errorf("agent: create session: status %d: %s", resp.StatusCode, snippet)
	}

	var sess Session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return Session{}, fmt.Errorf("agent: decode session: %w", err)
	}
	if sess.ID == "" {
		return Session{}, errors.New("agent: gateway returned session without id")
	}
	return sess, nil
}

// turnRequest is the first frame written on a turn websocket.
type turnRequest struct {
	UserID      string   `json:"user_id"`
	Prompt      string   `json:"prompt"`
	Attachments []string `json:"attachments,omitempty"`
}

// RunTurn opens a websocket for one turn and streams its events. The
// returned channel is closed when the gateway signals completion, the
// connection drops, or ctx is cancelled; a stream-level failure is
// delivered as a final Event with Err set.
func (c *Client) RunTurn(ctx context.Context, sessionID, userID, prompt string, attachments []string) (<-chan Event, error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) +
		"/ws/sessions/" + url.PathEscape(sessionID) + "/turn"

	opts := &websocket.DialOptions{HTTPClient: c.http}
	if c.token != "" {
		opts.HTTPHeader = http.Header{"Authorization": {"Bearer " + c.token}}
	}

	conn, _, err := websocket.Dial(ctx, wsURL, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: dial turn socket: %v", ErrUnavailable, err)
	}

	req := turnRequest{UserID: userID, Prompt: prompt, Attachments: attachments}
	payload, _ := json.Marshal(req)
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "write failed")
		return nil, fmt.Errorf("%w: send turn request: %v", ErrUnavailable, err)
	}

	events := make(chan Event)
	go c.readEvents(ctx, conn, events)
	return events, nil
}

// readEvents pumps frames from the turn socket into the event channel
// until the "done" event, an error, or context cancellation.
func (c *Client) readEvents(ctx context.Context, conn *websocket.Conn, events chan<- Event) {
	defer close(events)
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// A normal close after "done" is the expected end of stream.
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || ctx.Err() != nil {
				return
			}
			events <- Event{Err: fmt.Errorf("agent: turn stream: %w", err)}
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			events <- Event{Err: fmt.Errorf("agent: malformed event: %w", err)}
			return
		}

		if ev.Type == "error" {
			events <- Event{Type: ev.Type, Data: ev.Data, Err: fmt.Errorf("agent: turn failed: %s", string(ev.Data))}
			return
		}

		events <- ev

		if ev.Type == "done" {
			return
		}
	}
}

func (c *Client) authorize(h http.Header) {
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
}
