package main

import (
	"context"
	"fmt"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// program adapts runApp to the service manager's start/stop protocol.
type program struct {
	cfgPath string
	cancel  context.CancelFunc
	done    chan struct{}
}

func (p *program) Start(service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		if err := runApp(ctx, p.cfgPath); err != nil {
			fmt.Println("recur:", err)
		}
	}()
	return nil
}

func (p *program) Stop(service.Service) error {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
	return nil
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "service <install|uninstall|start|stop|run>",
		Short:     "Manage recur as a system service",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"install", "uninstall", "start", "stop", "run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			if cfgPath == "" {
				resolved, err := resolveConfigPath()
				if err != nil {
					return err
				}
				cfgPath = resolved
			}

			svcConfig := &service.Config{
				Name:        "recur",
				DisplayName: "recur scheduling engine",
				Description: "Executes recurring AI agent tasks on cron schedules.",
				Arguments:   []string{"service", "run", "--config", cfgPath},
			}

			prg := &program{cfgPath: cfgPath}
			svc, err := service.New(prg, svcConfig)
			if err != nil {
				return err
			}

			switch args[0] {
			case "run":
				// Invoked by the service manager itself.
				return svc.Run()
			case "install":
				if err := svc.Install(); err != nil {
					return err
				}
				fmt.Println("Service installed.")
			case "uninstall":
				if err := svc.Uninstall(); err != nil {
					return err
				}
				fmt.Println("Service uninstalled.")
			case "start":
				return svc.Start()
			case "stop":
				return svc.Stop()
			}
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}
