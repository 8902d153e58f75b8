// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for recur.
package config

import (
	"time"

	"github.com/flemzord/recur/internal/notify"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
	Database  DatabaseConfig  `yaml:"database"`
	Agent     AgentConfig     `yaml:"agent"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	MCP       MCPConfig       `yaml:"mcp"`

	// SMTP is optional; tasks with email notification fail their
	// notification step (and nothing else) when it is absent.
	SMTP *notify.SMTPConfig `yaml:"smtp,omitempty"`
}

// SchedulerConfig tunes the due-task poller.
type SchedulerConfig struct {
	// PollInterval is how often the store is queried for due tasks.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// DatabaseConfig locates the SQLite database file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AgentConfig points at the agent gateway executions run against.
type AgentConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`

	// TurnTimeout bounds one agent turn end to end.
	TurnTimeout time.Duration `yaml:"turn_timeout"`
}

// GatewayConfig configures the HTTP API server.
type GatewayConfig struct {
	Listen string `yaml:"listen"`

	// AuthToken protects every route except /health and /metrics.
	// Empty means the API is open; only sensible behind a trusted proxy.
	AuthToken string `yaml:"auth_token,omitempty"`
}

// MCPConfig toggles the agent-facing task tool server.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen,omitempty"`
}

// WithDefaults returns a copy of cfg with unset fields filled in.
func (c Config) WithDefaults() Config {
	if c.Scheduler.PollInterval <= 0 {
		c.Scheduler.PollInterval = 60 * time.Second
	}
	if c.Database.Path == "" {
		c.Database.Path = "recur.db"
	}
	if c.Agent.TurnTimeout <= 0 {
		c.Agent.TurnTimeout = 10 * time.Minute
	}
	if c.Gateway.Listen == "" {
		c.Gateway.Listen = "127.0.0.1:8420"
	}
	if c.MCP.Enabled && c.MCP.Listen == "" {
		c.MCP.Listen = "127.0.0.1:8421"
	}
	return c
}
