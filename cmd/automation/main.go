package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "automation",
		EnableShellCompletion: true,
		Usage:                 "Manage and trigger CRM automation workflows",
		Commands: []*cli.Command{
			validateCommand(),
			triggerCommand(),
			listCommand(),
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
