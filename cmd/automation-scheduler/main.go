package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/fluxcrm/automation/pkg/cmd"
	"github.com/fluxcrm/automation/pkg/crm"
	"github.com/fluxcrm/automation/pkg/log"
	"github.com/fluxcrm/automation/pkg/workflow"
)

func main() {
	command := &cli.Command{
		Name:                  "automation-scheduler",
		EnableShellCompletion: true,
		Usage:                 "Run the date-based trigger scanner on a cron schedule",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression for the daily sweep",
				Value:   "0 6 * * *",
				Sources: cli.EnvVars("SCAN_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:    "run-now",
				Usage:   "Run one sweep immediately and exit",
				Sources: cli.EnvVars("RUN_NOW"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("automation-scheduler")
			logger.InfoContext(ctx, "Initializing automation scheduler")

			eventBus := cmd.NewEventBus(command.String("event-bus"), "automation-scheduler", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			collaborators, _ := crm.NewMemoryCollaborators()
			dispatcher := workflow.NewDispatcher(persistence, eventBus, logger)
			scanner := workflow.NewScanner(persistence, collaborators.Adapters, dispatcher, logger)

			sweep := func() {
				err := scanner.Scan(ctx, time.Now().UTC())
				if err != nil {
					logger.ErrorContext(ctx, "Date scan failed", "error", err)
				}
			}

			if command.Bool("run-now") {
				sweep()

				return nil
			}

			scheduler := cron.New()

			_, err := scheduler.AddFunc(command.String("schedule"), sweep)
			if err != nil {
				logger.ErrorContext(ctx, "Invalid cron schedule", "error", err)

				return err
			}

			scheduler.Start()
			defer scheduler.Stop()

			logger.InfoContext(ctx, "Scheduler started", "schedule", command.String("schedule"))

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

			select {
			case <-ctx.Done():
			case <-stop:
				logger.InfoContext(ctx, "Shutting down scheduler")
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
