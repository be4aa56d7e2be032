// Package engine implements the dispatch and lifecycle engine: the task
// and worker state machines, the fetch-and-lease algorithm, the heartbeat
// and report contracts, and the heartbeat-timeout reaper. Everything here
// is built against the store.Store and eventbus.Bus ports, never against
// a concrete driver, so it is safe for multiple transport workers and
// multiple engine replicas to share one store.
package engine

import (
	"context"
	"time"

	"github.com/labtasker/labtasker/internal/apperr"
	"github.com/labtasker/labtasker/internal/clock"
	"github.com/labtasker/labtasker/internal/domain"
	"github.com/labtasker/labtasker/internal/eventbus"
	"github.com/labtasker/labtasker/internal/store"
	"github.com/labtasker/labtasker/pkg/backoff"
)

// casRetryBaseDelay/casRetryMaxDelay bound the jittered pause between CAS
// retry attempts, so a hot document under contention doesn't have every
// retrying caller hammer the store in lockstep.
const (
	casRetryBaseDelay = time.Millisecond
	casRetryMaxDelay  = 20 * time.Millisecond
)

// Outcome is a worker-reported task result.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Config tunes the engine's bounded-retry/scan behavior.
type Config struct {
	// CASRetries bounds read-modify-write retries on CAS miss before
	// returning CONFLICT (suggested: 8).
	CASRetries int
	// FetchScanLimit bounds the number of PENDING candidates considered
	// per fetch-next call (suggested: 32).
	FetchScanLimit int
}

// DefaultConfig returns the suggested tuning values.
func DefaultConfig() Config {
	return Config{CASRetries: 8, FetchScanLimit: 32}
}

// Engine is the dispatch and lifecycle engine.
type Engine struct {
	store  store.Store
	bus    *eventbus.Bus
	clock  clock.Clock
	config Config
}

// New builds an Engine over store s, publishing transitions to bus, using
// clk as its time source.
func New(s store.Store, bus *eventbus.Bus, clk clock.Clock, cfg Config) *Engine {
	if cfg.CASRetries <= 0 {
		cfg.CASRetries = DefaultConfig().CASRetries
	}
	if cfg.FetchScanLimit <= 0 {
		cfg.FetchScanLimit = DefaultConfig().FetchScanLimit
	}
	return &Engine{store: s, bus: bus, clock: clk, config: cfg}
}

func (e *Engine) now() time.Time { return e.clock.Now() }

// publishTaskEvent emits a task state-transition event.
func (e *Engine) publishTaskEvent(queueID, taskID string, oldStatus, newStatus string) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(domain.Event{
		Timestamp: e.now(),
		QueueID:   queueID,
		Entity:    domain.EntityTask,
		EntityID:  taskID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	})
}

// NotifyTaskTransition publishes a task state-transition event on behalf
// of a caller outside the engine (e.g. internal/admin applying an
// operator-driven transition) that nonetheless belongs on the same event
// stream as engine-driven ones.
func (e *Engine) NotifyTaskTransition(queueID, taskID, oldStatus, newStatus string) {
	e.publishTaskEvent(queueID, taskID, oldStatus, newStatus)
}

// NotifyWorkerTransition is NotifyTaskTransition's worker-entity
// counterpart.
func (e *Engine) NotifyWorkerTransition(queueID, workerID, oldStatus, newStatus string) {
	e.publishWorkerEvent(queueID, workerID, oldStatus, newStatus)
}

func (e *Engine) publishWorkerEvent(queueID, workerID string, oldStatus, newStatus string) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(domain.Event{
		Timestamp: e.now(),
		QueueID:   queueID,
		Entity:    domain.EntityWorker,
		EntityID:  workerID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	})
}

// retryTaskCAS retries a read-check-mutate-CAS sequence on a single task up
// to e.config.CASRetries times. check inspects the freshly loaded task and
// may abort the sequence (e.g. NOT_OWNED); mutate performs the actual
// field changes applied under CAS.
func (e *Engine) retryTaskCAS(ctx context.Context, taskID string, check func(*domain.Task) error, mutate func(*domain.Task)) (*domain.Task, *domain.Task, error) {
	var before *domain.Task
	for attempt := 0; attempt < e.config.CASRetries; attempt++ {
		task, err := e.store.GetTask(ctx, taskID)
		if err != nil {
			return nil, nil, err
		}
		if check != nil {
			if err := check(task); err != nil {
				return nil, nil, err
			}
		}
		before = task
		updated, err := e.store.UpdateTaskCAS(ctx, taskID, task.ETag, mutate)
		if err == nil {
			return before, updated, nil
		}
		if apperr.Is(err, apperr.Conflict) {
			time.Sleep(backoff.ExponentialJitter(casRetryBaseDelay, casRetryMaxDelay, attempt+1))
			continue
		}
		return nil, nil, err
	}
	return nil, nil, apperr.New(apperr.Conflict, "exceeded retry attempts updating task %s", taskID)
}

// retryWorkerCAS is retryTaskCAS's worker-side counterpart.
func (e *Engine) retryWorkerCAS(ctx context.Context, workerID string, check func(*domain.Worker) error, mutate func(*domain.Worker)) (*domain.Worker, *domain.Worker, error) {
	var before *domain.Worker
	for attempt := 0; attempt < e.config.CASRetries; attempt++ {
		w, err := e.store.GetWorker(ctx, workerID)
		if err != nil {
			return nil, nil, err
		}
		if check != nil {
			if err := check(w); err != nil {
				return nil, nil, err
			}
		}
		before = w
		updated, err := e.store.UpdateWorkerCAS(ctx, workerID, w.ETag, mutate)
		if err == nil {
			return before, updated, nil
		}
		if apperr.Is(err, apperr.Conflict) {
			time.Sleep(backoff.ExponentialJitter(casRetryBaseDelay, casRetryMaxDelay, attempt+1))
			continue
		}
		return nil, nil, err
	}
	return nil, nil, apperr.New(apperr.Conflict, "exceeded retry attempts updating worker %s", workerID)
}
