package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/fluxcrm/automation/pkg/cmd"
	"github.com/fluxcrm/automation/pkg/log"
)

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored workflows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))
			logger := log.WithModule("automation-list")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			workflows, err := persistence.Workflows().All(ctx)
			if err != nil {
				return fmt.Errorf("failed to list workflows: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tENTITY\tSTATUS\tRUNS")

			for _, workflow := range workflows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					workflow.ID, workflow.Name, workflow.EntityKind,
					workflow.Status, workflow.TotalExecutions)
			}

			return w.Flush()
		},
	}
}
