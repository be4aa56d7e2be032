// Package api implements the wire protocol transport: a chi router
// mapping JSON request DTOs to internal/admin and internal/engine calls,
// and translating apperr.Kind into HTTP status codes at the edge.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/labtasker/labtasker/internal/admin"
	"github.com/labtasker/labtasker/internal/engine"
	"github.com/labtasker/labtasker/internal/eventbus"
	"github.com/labtasker/labtasker/internal/store"
)

// Server is the HTTP transport adapter over admin/engine/store.
type Server struct {
	admin  *admin.Admin
	engine *engine.Engine
	store  store.Store
	bus    *eventbus.Bus
}

// New builds a Server.
func New(a *admin.Admin, eng *engine.Engine, s store.Store, bus *eventbus.Bus) *Server {
	return &Server{admin: a, engine: eng, store: s, bus: bus}
}

// Run serves the API on host:port: chainMiddleware composition, then
// graceful shutdown on SIGINT/SIGTERM.
func (s *Server) Run(host string, port int) {
	addr := fmt.Sprintf("%s:%d", host, port)

	h := chainMiddleware(
		s.routes(),
		recoverHandler,
		loggerHandler,
		realIPHandler,
		requestIDHandler,
		corsHandler,
	)

	httpServer := http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Fatal().Err(err).Msg("server forced to shutdown")
		}
		close(done)
	}()

	log.Info().Msgf("server serving on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("failed to listen and serve")
	}

	<-done
	log.Info().Msg("server stopped")
}
