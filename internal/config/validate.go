package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks the structural validity of a Config. Defaults are not
// applied here; call WithDefaults first if unset fields should pass.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if cfg.Scheduler.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("config: scheduler.poll_interval %s is below the 1s minimum", cfg.Scheduler.PollInterval))
	}

	if cfg.Database.Path == "" {
		errs = append(errs, errors.New("config: database.path is required"))
	}

	if cfg.Agent.BaseURL == "" {
		errs = append(errs, errors.New("config: agent.base_url is required"))
	}

	if cfg.Gateway.Listen == "" {
		errs = append(errs, errors.New("config: gateway.listen is required"))
	}

	if cfg.MCP.Enabled && cfg.MCP.Listen == "" {
		errs = append(errs, errors.New("config: mcp.listen is required when mcp.enabled is true"))
	}

	errs = append(errs, validateSMTP(cfg)...)

	return errors.Join(errs...)
}

// validateSMTP rejects a partially filled smtp section. A missing section
// is fine; a present one must be complete enough to build a mailer.
func validateSMTP(cfg *Config) []error {
	if cfg.SMTP == nil {
		return nil
	}
	var errs []error

	if cfg.SMTP.Host == "" {
		errs = append(errs, errors.New("config: smtp.host is required"))
	}
	if cfg.SMTP.Username == "" {
		errs = append(errs, errors.New("config: smtp.username is required"))
	}
	if cfg.SMTP.Password == "" {
		errs = append(errs, errors.New("config: smtp.password is required"))
	}
	return errs
}
