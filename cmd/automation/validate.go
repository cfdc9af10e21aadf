package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/fluxcrm/automation/pkg/log"
	"github.com/fluxcrm/automation/pkg/models"
	"github.com/fluxcrm/automation/pkg/registry"
	"github.com/fluxcrm/automation/pkg/workflow"
)

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate a workflow definition file",
		ArgsUsage: "<workflow.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			path := command.Args().First()
			if path == "" {
				return fmt.Errorf("usage: automation validate <workflow.json>")
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			var definition models.Workflow

			err = json.Unmarshal(data, &definition)
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", path, err)
			}

			reg, err := registry.NewRegistry()
			if err != nil {
				return err
			}

			service := workflow.NewService(nil, reg)

			err = service.Validate(&definition)
			if err != nil {
				return err
			}

			fmt.Printf("%s is valid: %d trigger(s), %d action(s)\n",
				path, len(definition.Triggers), len(definition.Actions))

			return nil
		},
	}
}
