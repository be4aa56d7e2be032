// Package admin implements the queue/worker/task mutation surface:
// create, delete, update, ls, bulk update. Reporting task results is done
// by internal/engine, not here. It is a thin layer over
// internal/engine and internal/store — the CRUD and bulk-update
// operations that feed the dispatch engine rather than implement
// lifecycle logic themselves.
package admin

import (
	"github.com/google/uuid"

	"github.com/labtasker/labtasker/internal/clock"
	"github.com/labtasker/labtasker/internal/engine"
	"github.com/labtasker/labtasker/internal/store"
)

// Admin is the admin operations surface.
type Admin struct {
	store  store.Store
	engine *engine.Engine
	clock  clock.Clock
}

// New builds an Admin over store s and engine eng, using clk as its time
// source.
func New(s store.Store, eng *engine.Engine, clk clock.Clock) *Admin {
	return &Admin{store: s, engine: eng, clock: clk}
}

func newID() string { return uuid.NewString() }
