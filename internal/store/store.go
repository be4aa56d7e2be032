// Package store defines the abstract document-store port the dispatch
// engine is built against. Collections: queues, tasks, workers. All
// mutation is either a plain insert/delete or a compare-and-swap keyed on
// a document's etag; there is no "read, mutate in-process, write" path
// that is not etag-guarded.
package store

import (
	"context"

	"github.com/labtasker/labtasker/internal/domain"
	"github.com/labtasker/labtasker/internal/matcher"
)

// Cursor paginates ls-tasks/ls-workers by (created_at, id).
type Cursor struct {
	CreatedAtUnixNano int64
	ID                string
}

// Page is a cursor-paginated slice of Store.ListTasks/ListWorkers.
type Page[T any] struct {
	Items []T
	Next  *Cursor // nil when there are no more results
}

// Store is the abstract persistence port. Concrete drivers (e.g.
// store/redisdoc) implement it.
type Store interface {
	// Queues
	CreateQueue(ctx context.Context, q *domain.Queue) error
	GetQueueByName(ctx context.Context, name string) (*domain.Queue, error)
	GetQueueByID(ctx context.Context, id string) (*domain.Queue, error)
	UpdateQueueCAS(ctx context.Context, id string, expectedEtag int64, mutate func(*domain.Queue)) (*domain.Queue, error)
	DeleteQueue(ctx context.Context, id string, cascade bool) error

	// Tasks
	CreateTask(ctx context.Context, t *domain.Task) error
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	UpdateTaskCAS(ctx context.Context, id string, expectedEtag int64, mutate func(*domain.Task)) (*domain.Task, error)
	DeleteTask(ctx context.Context, id string) error

	// PendingCandidates returns up to limit PENDING tasks for queueID,
	// sorted by (priority DESC, created_at ASC, id ASC). The scan itself
	// may read more than limit documents internally but must not return
	// more than limit.
	PendingCandidates(ctx context.Context, queueID string, limit int) ([]*domain.Task, error)

	// RunningTasks returns all RUNNING tasks across all queues, for the
	// reaper sweep.
	RunningTasks(ctx context.Context) ([]*domain.Task, error)

	ListTasks(ctx context.Context, queueID string, filter *matcher.Filter, cursor *Cursor, limit int) (Page[*domain.Task], error)

	// Workers
	CreateWorker(ctx context.Context, w *domain.Worker) error
	GetWorker(ctx context.Context, id string) (*domain.Worker, error)
	UpdateWorkerCAS(ctx context.Context, id string, expectedEtag int64, mutate func(*domain.Worker)) (*domain.Worker, error)
	DeleteWorker(ctx context.Context, id string, cascadeUpdate bool) error
	ListWorkers(ctx context.Context, queueID string, filter *matcher.Filter, cursor *Cursor, limit int) (Page[*domain.Worker], error)

	Ping(ctx context.Context) error
}
