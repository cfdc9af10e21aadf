package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v3"

	"github.com/fluxcrm/automation/pkg/assignment"
	"github.com/fluxcrm/automation/pkg/assignment/rotation"
	"github.com/fluxcrm/automation/pkg/cmd"
	"github.com/fluxcrm/automation/pkg/crm"
	"github.com/fluxcrm/automation/pkg/log"
	"github.com/fluxcrm/automation/pkg/otelhelper"
	"github.com/fluxcrm/automation/pkg/runner"
	"github.com/fluxcrm/automation/pkg/webhook"
	"github.com/fluxcrm/automation/pkg/workflow"
)

func main() {
	command := &cli.Command{
		Name:                  "automation-worker",
		EnableShellCompletion: true,
		Usage:                 "Start a worker that executes triggered workflows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
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
			&cli.IntFlag{
				Name:    "webhook-concurrency",
				Usage:   "Maximum concurrent outbound webhook deliveries",
				Value:   8,
				Sources: cli.EnvVars("WEBHOOK_CONCURRENCY"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the shared rotation cursor (persisted cursor if empty)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.BoolFlag{
				Name:    "enable-tracing",
				Usage:   "Emit OpenTelemetry spans for executions",
				Sources: cli.EnvVars("ENABLE_TRACING"),
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

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("automation-worker").With("worker_id", workerID)
			logger.InfoContext(ctx, "Initializing automation worker")

			eventBus := cmd.NewEventBus(command.String("event-bus"), "automation-worker", logger)
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

			// In-memory collaborators until the CRM stores are wired in.
			collaborators, _ := crm.NewMemoryCollaborators()

			var rotationStore rotation.Store = rotation.NewPersistenceStore(persistence.AssignmentRules())

			if redisURL := command.String("redis-url"); redisURL != "" {
				opt, err := redis.ParseURL(redisURL)
				if err != nil {
					logger.ErrorContext(ctx, "Invalid redis URL", "error", err)

					return err
				}

				rotationStore = rotation.NewRedis(redis.NewClient(opt))
			}

			resolver := assignment.NewResolver(rotationStore, collaborators.Teams, collaborators.Adapters, logger)

			webhooks := webhook.NewDispatcher(webhook.Config{
				MaxConcurrency: command.Int("webhook-concurrency"),
			}, webhook.NewMemoryDeliveryLog(), logger)
			defer webhooks.Wait()

			actionRunner := runner.NewRunner(collaborators, persistence.AssignmentRules(), resolver, webhooks, logger)
			executor := workflow.NewExecutor(persistence, actionRunner, eventBus, workerID, logger)

			if command.Bool("enable-tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "automation-worker")
				if err != nil {
					logger.ErrorContext(ctx, "Failed to initialize tracing", "error", err)

					return err
				}

				executor.WithTracer(tracer)
			}

			worker := workflow.NewWorker(eventBus, executor, logger)

			err := worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)

				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

			select {
			case <-ctx.Done():
			case <-stop:
				logger.InfoContext(ctx, "Shutting down worker")
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
