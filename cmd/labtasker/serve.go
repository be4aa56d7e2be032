package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/labtasker/labtasker/internal/admin"
	"github.com/labtasker/labtasker/internal/api"
	"github.com/labtasker/labtasker/internal/clock"
	"github.com/labtasker/labtasker/internal/config"
	"github.com/labtasker/labtasker/internal/engine"
	"github.com/labtasker/labtasker/internal/eventbus"
	"github.com/labtasker/labtasker/internal/store/redisdoc"
	"github.com/labtasker/labtasker/pkg/backoff"
)

const (
	exitConfigError  = 1
	exitStoreFailure = 2
)

// serveCmd runs the HTTP API, the event bus, and the background reaper.
// The reaper sweep is scheduled alongside the HTTP server rather than
// living in a separate process, since workers are external HTTP clients
// with no in-process consumer loop to piggyback on.
func serveCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server, event bus, and reaper",
		Run: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			cfg := config.Load()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s := connectStore(ctx, cfg)

			bus := eventbus.New(cfg.EventBufferSize)
			eng := engine.New(s, bus, clock.System{}, engine.Config{
				CASRetries:     cfg.CASRetries,
				FetchScanLimit: cfg.FetchScanLimit,
			})
			a := admin.New(s, eng, clock.System{})

			go runReaperLoop(ctx, eng, cfg.HeartbeatReaperPeriod)

			server := api.New(a, eng, s, bus)
			server.Run(cfg.API.Host, cfg.API.Port)
		},
	}
	return command
}

// connectStore dials the document store, retrying with jittered backoff —
// a transient dial failure at startup should not be fatal immediately,
// but a sustained one exits the process with exitStoreFailure.
func connectStore(ctx context.Context, cfg *config.Config) *redisdoc.Store {
	s := redisdoc.New(redisdoc.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	const maxAttempts = 5
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.Connect(ctx); err == nil {
			return s
		} else {
			lastErr = err
		}
		if attempt < maxAttempts {
			time.Sleep(backoff.ExponentialJitter(200*time.Millisecond, 5*time.Second, attempt))
		}
	}
	log.Error().Err(lastErr).Msg("could not connect to the document store")
	os.Exit(exitStoreFailure)
	return nil
}

// runReaperLoop sweeps expired leases on a fixed period. The period should
// be kept well under the smallest heartbeat_timeout in use, so a crashed
// worker's task is reclaimed promptly.
func runReaperLoop(ctx context.Context, eng *engine.Engine, period time.Duration) {
	if period <= 0 {
		period = 10 * time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := eng.RunReaperOnce(ctx)
			if err != nil {
				log.Error().Err(err).Msg("reaper sweep failed")
				continue
			}
			if n > 0 {
				log.Info().Int("transitioned", n).Msg("reaper swept expired leases")
			}
		}
	}
}
