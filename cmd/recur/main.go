// Package main is the entry point for the recur CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/flemzord/recur/internal/config"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "recur",
		Short:         "A recurring-task scheduling and execution engine for AI agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd(), initCmd(), serviceCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("recur %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.LoadValidated(args[0])
			if err != nil {
				return err
			}

			fmt.Println("Configuration OK")
			fmt.Printf("  database:      %s\n", cfg.Database.Path)
			fmt.Printf("  agent:         %s\n", cfg.Agent.BaseURL)
			fmt.Printf("  gateway:       %s\n", cfg.Gateway.Listen)
			fmt.Printf("  poll interval: %s\n", cfg.Scheduler.PollInterval)
			if cfg.SMTP != nil {
				fmt.Printf("  smtp:          %s:%d\n", cfg.SMTP.Host, cfg.SMTP.Port)
			}
			if cfg.MCP.Enabled {
				fmt.Printf("  mcp:           %s\n", cfg.MCP.Listen)
			}
			return nil
		},
	})
	return cmd
}

// resolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/recur/recur.yaml → ./recur.yaml
func resolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "recur", "recur.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "recur", "recur.yaml"))
	}

	candidates = append(candidates, "recur.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v); run 'recur init' to create one", candidates)
}
