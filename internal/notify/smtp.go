package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds the outbound mail transport settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`

	// BaseURL is the public UI origin used to build session deep links,
	// e.g. "https://recur.example.com".
	BaseURL string `yaml:"base_url"`
}

// SMTPMailer sends task notifications over SMTP using go-mail.
type SMTPMailer struct {
	cfg SMTPConfig
}

// Compile-time interface check.
var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer validates cfg and returns a mailer bound to it.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: incomplete SMTP configuration", ErrSend)
	}
	if cfg.Port == 0 {
		cfg.Port = 465
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPMailer{cfg: cfg}, nil
}

// SendTaskNotification formats and sends the post-execution email: task
// name, execution time, the result or error summary, and a deep link to
// the originating session.
func (m *SMTPMailer) SendTaskNotification(ctx context.Context, to, taskName, resultSummary, sessionID string, executionTime time.Time) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("%w: from address: %v", ErrSend, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("%w: to address: %v", ErrSend, err)
	}

	msg.Subject("Scheduled task finished: " + taskName)
	msg.SetBodyString(mail.TypeTextHTML, m.body(taskName, resultSummary, sessionID, executionTime))

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithSSL(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	return nil
}

func (m *SMTPMailer) body(taskName, resultSummary, sessionID string, executionTime time.Time) string {
	var b strings.Builder

	b.WriteString(`<html><body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">`)
	b.WriteString(`<h2>Scheduled task finished</h2>`)
	fmt.Fprintf(&b, `<p><strong>Task:</strong> %s</p>`, html.EscapeString(taskName))
	fmt.Fprintf(&b, `<p><strong>Executed at:</strong> %s</p>`, executionTime.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, `<h3>Result</h3><div style="border: 1px solid #ddd; padding: 12px;">%s</div>`, html.EscapeString(resultSummary))

	if sessionID != "" && m.cfg.BaseURL != "" {
		link := strings.TrimRight(m.cfg.BaseURL, "/") + "/chat/" + sessionID
		fmt.Fprintf(&b, `<p><a href="%s">View the full session</a></p>`, link)
	}

	b.WriteString(`<hr><p style="color: #666; font-size: 12px;">Sent automatically by recur. Do not reply.</p>`)
	b.WriteString(`</body></html>`)

	return b.String()
}
