package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	cli "github.com/urfave/cli/v3"

	"github.com/fluxcrm/automation/pkg/assignment"
	"github.com/fluxcrm/automation/pkg/assignment/rotation"
	"github.com/fluxcrm/automation/pkg/channels/gochannel"
	"github.com/fluxcrm/automation/pkg/cmd"
	"github.com/fluxcrm/automation/pkg/crm"
	"github.com/fluxcrm/automation/pkg/eventbus"
	"github.com/fluxcrm/automation/pkg/log"
	"github.com/fluxcrm/automation/pkg/models"
	"github.com/fluxcrm/automation/pkg/runner"
	"github.com/fluxcrm/automation/pkg/webhook"
	"github.com/fluxcrm/automation/pkg/workflow"
)

func triggerCommand() *cli.Command {
	return &cli.Command{
		Name:  "trigger",
		Usage: "Manually fire one workflow for one entity",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "workflow-id",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "entity-kind",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "entity-id",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "entity-file",
				Usage: "JSON file with the entity snapshot",
			},
			&cli.StringFlag{
				Name:  "actor-id",
				Usage: "User performing the trigger, empty for system",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: runTrigger,
	}
}

// runTrigger wires an in-process bus and worker so the manual dispatch is
// handled before the command returns. The blocking test channel makes the
// publish wait for the worker's ack.
func runTrigger(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("automation-trigger")

	persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	snapshot, err := loadSnapshot(command.String("entity-file"))
	if err != nil {
		return err
	}

	collaborators, _ := crm.NewMemoryCollaborators()
	seedEntity(collaborators, command.String("entity-kind"), command.String("entity-id"), snapshot)

	pub, sub, err := gochannel.CreateTestChannel(watermill.NewSlogLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create channel: %w", err)
	}

	bus := eventbus.NewWatermillEventBus(pub, sub)
	defer func() {
		err := bus.Close()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	rotationStore := rotation.NewPersistenceStore(persistence.AssignmentRules())
	resolver := assignment.NewResolver(rotationStore, collaborators.Teams, collaborators.Adapters, logger)
	webhooks := webhook.NewDispatcher(webhook.Config{}, webhook.NewMemoryDeliveryLog(), logger)
	actionRunner := runner.NewRunner(collaborators, persistence.AssignmentRules(), resolver, webhooks, logger)
	executor := workflow.NewExecutor(persistence, actionRunner, nil, "manual-cli", logger)
	worker := workflow.NewWorker(bus, executor, logger)

	err = worker.Start(ctx)
	if err != nil {
		return err
	}

	dispatcher := workflow.NewDispatcher(persistence, bus, logger)

	ectx := models.EventContext{
		EntityKind: command.String("entity-kind"),
		EntityID:   command.String("entity-id"),
		Entity:     snapshot,
		ActorID:    command.String("actor-id"),
	}

	err = dispatcher.Manual(ctx, command.String("workflow-id"), ectx)
	if err != nil {
		return err
	}

	webhooks.Wait()

	executions, err := persistence.Executions().ByWorkflow(ctx, command.String("workflow-id"))
	if err != nil {
		return fmt.Errorf("failed to load executions: %w", err)
	}

	if len(executions) == 0 {
		fmt.Println("workflow was not executed (run-once already satisfied?)")

		return nil
	}

	latest := executions[len(executions)-1]
	fmt.Printf("execution %s: %s (%d action(s) executed)\n",
		latest.ID, latest.Status, latest.ActionsExecuted)

	return nil
}

func loadSnapshot(path string) (models.Snapshot, error) {
	if path == "" {
		return models.Snapshot{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var snapshot models.Snapshot

	err = json.Unmarshal(data, &snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return snapshot, nil
}

func seedEntity(collaborators *crm.Collaborators, kind, id string, snapshot models.Snapshot) {
	adapter, err := collaborators.Adapters.Get(kind)
	if err != nil {
		return
	}

	type putter interface {
		Put(id string, snapshot map[string]any)
	}

	if p, ok := adapter.(putter); ok {
		p.Put(id, snapshot)
	}
}
