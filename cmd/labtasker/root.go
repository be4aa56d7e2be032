package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// run builds and executes the root cobra command: a bare root command
// whose only job is dispatching to subcommands.
func run() {
	var command = &cobra.Command{
		Use:   "labtasker",
		Short: "Labtasker task dispatch server",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	command.AddCommand(serveCmd())
	command.AddCommand(reapCmd())

	if err := command.Execute(); err != nil {
		log.Fatal().Msgf("failed to execute command, err: %v", err.Error())
	}
}
