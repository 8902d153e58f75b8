package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/flemzord/recur/internal/agent"
	"github.com/flemzord/recur/internal/config"
	"github.com/flemzord/recur/internal/gateway"
	"github.com/flemzord/recur/internal/mcptool"
	"github.com/flemzord/recur/internal/notify"
	"github.com/flemzord/recur/internal/scheduler"
	"github.com/flemzord/recur/internal/service"
	"github.com/flemzord/recur/internal/store/sqlite"
	"github.com/flemzord/recur/internal/telemetry"
)

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the scheduling engine, HTTP gateway, and tool server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			if cfgPath == "" {
				resolved, err := resolveConfigPath()
				if err != nil {
					return err
				}
				cfgPath = resolved
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runApp(ctx, cfgPath)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

// runApp assembles and runs every component until ctx is cancelled.
func runApp(ctx context.Context, cfgPath string) error {
	cfg, err := config.LoadValidated(cfgPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	shutdownTracing, err := telemetry.Setup(ctx, "recur", version, logger)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	stores, err := sqlite.Open(cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	engine, err := agent.NewClient(cfg.Agent.BaseURL, cfg.Agent.Token, cfg.Agent.TurnTimeout)
	if err != nil {
		return err
	}

	var mailer notify.Mailer
	if cfg.SMTP != nil {
		mailer, err = notify.NewSMTPMailer(*cfg.SMTP)
		if err != nil {
			return err
		}
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := scheduler.NewMetrics(registry)

	dispatcher := notify.NewDispatcher(mailer, stores.Executions, notify.NewMetrics(registry), logger)

	runner, err := scheduler.NewRunner(scheduler.RunnerConfig{
		Tasks:      stores.Tasks,
		Executions: stores.Executions,
		Engine:     engine,
		Notifier:   dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	poller, err := scheduler.NewPoller(scheduler.PollerConfig{
		Interval: cfg.Scheduler.PollInterval,
		Logger:   logger,
		Metrics:  metrics,
	}, stores.Tasks, runner)
	if err != nil {
		return err
	}

	svc, err := service.NewTaskService(service.Config{
		Tasks:      stores.Tasks,
		Executions: stores.Executions,
		Executor:   runner,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	server, err := gateway.NewServer(gateway.Config{
		Listen:    cfg.Gateway.Listen,
		AuthToken: cfg.Gateway.AuthToken,
	}, svc, registry, logger)
	if err != nil {
		return err
	}

	if err := poller.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = poller.Stop(context.Background()) }()

	if err := server.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = server.Stop(context.Background()) }()

	if cfg.MCP.Enabled {
		tools, err := mcptool.NewServer(svc, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := tools.StartHTTP(cfg.MCP.Listen); err != nil {
				logger.Error("mcptool: server stopped", "error", err)
			}
		}()
	}

	logger.Info("recur started", "version", version)
	<-ctx.Done()
	logger.Info("recur shutting down")
	return nil
}
