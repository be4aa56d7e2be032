package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/labtasker/labtasker/internal/clock"
	"github.com/labtasker/labtasker/internal/config"
	"github.com/labtasker/labtasker/internal/engine"
	"github.com/labtasker/labtasker/internal/eventbus"
)

// reapCmd runs a single reaper sweep and exits, for operators who want to
// force an immediate lease-expiry pass (e.g. from a cron job or after
// restoring a snapshot) instead of waiting for the serve process's own
// ticker.
func reapCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "reap",
		Short: "Run a single heartbeat/task-timeout reaper sweep",
		Run: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			cfg := config.Load()

			ctx := context.Background()
			s := connectStore(ctx, cfg)
			defer s.Close()

			eng := engine.New(s, eventbus.New(cfg.EventBufferSize), clock.System{}, engine.Config{
				CASRetries:     cfg.CASRetries,
				FetchScanLimit: cfg.FetchScanLimit,
			})

			n, err := eng.RunReaperOnce(ctx)
			if err != nil {
				log.Error().Err(err).Msg("reaper sweep failed")
				os.Exit(exitStoreFailure)
			}
			log.Info().Int("transitioned", n).Msg("reaper sweep complete")
		},
	}
	return command
}
