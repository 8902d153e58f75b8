package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/flemzord/recur/internal/config"
)

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("output")
			return runInitWizard(out)
		},
	}
	cmd.Flags().StringP("output", "o", "recur.yaml", "Where to write the configuration")
	return cmd
}

// runInitWizard walks through the minimal questions needed for a working
// setup and writes the answers as YAML.
func runInitWizard(out string) error {
	if _, err := os.Stat(out); err == nil {
		return fmt.Errorf("%s already exists, not overwriting", out)
	}

	var (
		dbPath       = "recur.db"
		agentURL     string
		agentToken   string
		listen       = "127.0.0.1:8420"
		apiToken     string
		enableSMTP   bool
		smtpHost     string
		smtpPort     = "465"
		smtpUser     string
		smtpPassword string
		smtpBaseURL  string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("SQLite database path").
				Value(&dbPath).
				Validate(required("database path")),
			huh.NewInput().
				Title("Agent gateway base URL").
				Description("The HTTP origin of the agent gateway, e.g. http://127.0.0.1:8080").
				Value(&agentURL).
				Validate(required("agent base URL")),
			huh.NewInput().
				Title("Agent gateway token").
				Description("Leave empty if the gateway is unauthenticated").
				EchoMode(huh.EchoModePassword).
				Value(&agentToken),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("API listen address").
				Value(&listen).
				Validate(required("listen address")),
			huh.NewInput().
				Title("API auth token").
				Description("Bearer token protecting the task API; empty leaves it open").
				EchoMode(huh.EchoModePassword).
				Value(&apiToken),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Configure email notifications?").
				Value(&enableSMTP),
		),
		huh.NewGroup(
			huh.NewInput().Title("SMTP host").Value(&smtpHost).Validate(required("SMTP host")),
			huh.NewInput().Title("SMTP port").Value(&smtpPort).Validate(validPort),
			huh.NewInput().Title("SMTP username").Value(&smtpUser).Validate(required("SMTP username")),
			huh.NewInput().Title("SMTP password").EchoMode(huh.EchoModePassword).Value(&smtpPassword).Validate(required("SMTP password")),
			huh.NewInput().
				Title("Public base URL for session links").
				Description("Used in notification emails, e.g. https://recur.example.com").
				Value(&smtpBaseURL),
		).WithHideFunc(func() bool { return !enableSMTP }),
	)

	if err := form.Run(); err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("version: \"1\"\n\n")
	b.WriteString("scheduler:\n  poll_interval: 60s\n\n")
	fmt.Fprintf(&b, "database:\n  path: %s\n\n", dbPath)
	fmt.Fprintf(&b, "agent:\n  base_url: %s\n", agentURL)
	if agentToken != "" {
		fmt.Fprintf(&b, "  token: %s\n", agentToken)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "gateway:\n  listen: %s\n", listen)
	if apiToken != "" {
		fmt.Fprintf(&b, "  auth_token: %s\n", apiToken)
	}
	if enableSMTP {
		b.WriteString("\nsmtp:\n")
		fmt.Fprintf(&b, "  host: %s\n", smtpHost)
		fmt.Fprintf(&b, "  port: %s\n", smtpPort)
		fmt.Fprintf(&b, "  username: %s\n", smtpUser)
		fmt.Fprintf(&b, "  password: %s\n", smtpPassword)
		if smtpBaseURL != "" {
			fmt.Fprintf(&b, "  base_url: %s\n", smtpBaseURL)
		}
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(out, []byte(b.String()), 0o600); err != nil {
		return err
	}

	// The wizard should never produce something 'config check' rejects.
	if _, err := config.LoadValidated(out); err != nil {
		return fmt.Errorf("generated configuration is invalid: %w", err)
	}

	fmt.Printf("Wrote %s\n", out)
	fmt.Println("Start the engine with: recur start --config", out)
	return nil
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func validPort(s string) error {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid port %q", s)
	}
	return nil
}
