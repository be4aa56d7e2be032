package admin

import (
	"context"

	"github.com/labtasker/labtasker/internal/apperr"
	"github.com/labtasker/labtasker/internal/domain"
	"github.com/labtasker/labtasker/internal/matcher"
	"github.com/labtasker/labtasker/internal/store"
)

// RegisterWorkerParams is register-worker's request shape.
type RegisterWorkerParams struct {
	WorkerName string
	Metadata   domain.Value
	MaxRetries *int
}

// RegisterWorker inserts a new ACTIVE worker into queueName.
func (a *Admin) RegisterWorker(ctx context.Context, queueName string, p RegisterWorkerParams) (*domain.Worker, error) {
	q, err := a.store.GetQueueByName(ctx, queueName)
	if err != nil {
		return nil, err
	}
	maxRetries := domain.DefaultWorkerMaxRetries
	if p.MaxRetries != nil {
		if *p.MaxRetries < 0 {
			return nil, apperr.New(apperr.InvalidArgument, "max_retries must be >= 0")
		}
		maxRetries = *p.MaxRetries
	}
	metadata := p.Metadata
	if metadata.IsNull() {
		metadata = domain.Object(nil)
	}

	now := a.clock.Now()
	w := &domain.Worker{
		ID:           newID(),
		QueueID:      q.ID,
		WorkerName:   p.WorkerName,
		Metadata:     metadata,
		MaxRetries:   maxRetries,
		Status:       domain.WorkerActive,
		CreatedAt:    now,
		LastModified: now,
	}
	if err := a.store.CreateWorker(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// GetWorker loads a worker by id.
func (a *Admin) GetWorker(ctx context.Context, id string) (*domain.Worker, error) {
	return a.store.GetWorker(ctx, id)
}

// WorkerUpdate names the fields update-worker may change. Setting Resume
// reactivates a SUSPENDED/CRASHED worker and resets its retry counter.
type WorkerUpdate struct {
	MetadataUpdate map[string]domain.Value
	MaxRetries     *int
	Resume         bool
}

// UpdateWorker applies a CAS-guarded partial update to a worker.
func (a *Admin) UpdateWorker(ctx context.Context, workerID string, u WorkerUpdate) (*domain.Worker, error) {
	w, err := a.store.GetWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	now := a.clock.Now()
	oldStatus := w.Status
	updated, err := a.store.UpdateWorkerCAS(ctx, workerID, w.ETag, func(cur *domain.Worker) {
		if u.MetadataUpdate != nil {
			for k, v := range u.MetadataUpdate {
				cur.Metadata = cur.Metadata.Set(k, v)
			}
		}
		if u.MaxRetries != nil {
			cur.MaxRetries = *u.MaxRetries
		}
		if u.Resume {
			cur.Status = domain.WorkerActive
			cur.Retries = 0
		}
		cur.LastModified = now
	})
	if err != nil {
		return nil, err
	}
	if u.Resume && oldStatus != updated.Status {
		a.engine.NotifyWorkerTransition(updated.QueueID, updated.ID, string(oldStatus), string(updated.Status))
	}
	return updated, nil
}

// DeleteWorker deletes a worker, clearing WorkerID on its RUNNING tasks
// (returning them to PENDING) when cascadeUpdate is set.
func (a *Admin) DeleteWorker(ctx context.Context, workerID string, cascadeUpdate bool) error {
	return a.store.DeleteWorker(ctx, workerID, cascadeUpdate)
}

// ListWorkers returns a filtered, cursor-paginated page of a queue's
// workers.
func (a *Admin) ListWorkers(ctx context.Context, queueName string, filter *matcher.Filter, cursor *store.Cursor, limit int) (store.Page[*domain.Worker], error) {
	q, err := a.store.GetQueueByName(ctx, queueName)
	if err != nil {
		return store.Page[*domain.Worker]{}, err
	}
	return a.store.ListWorkers(ctx, q.ID, filter, cursor, limit)
}
