package engine

import (
	"context"

	"github.com/labtasker/labtasker/internal/apperr"
	"github.com/labtasker/labtasker/internal/domain"
	"github.com/labtasker/labtasker/internal/matcher"
)

// FetchRequest is the fetch-next request contract.
type FetchRequest struct {
	QueueID          string
	WorkerID         string
	RequiredFields   []string
	ExtraFilter      *matcher.Filter
	HeartbeatTimeout *int // overrides the task's stored value for this lease, persisted
}

// FetchNext atomically selects at most one PENDING task matching req and
// leases it to the requesting worker. It returns (nil, nil) when no task
// is available — that is not an error.
func (e *Engine) FetchNext(ctx context.Context, req FetchRequest) (*domain.Task, error) {
	worker, err := e.store.GetWorker(ctx, req.WorkerID)
	if err != nil {
		return nil, err
	}
	if worker.QueueID != req.QueueID {
		return nil, apperr.New(apperr.NotFound, "worker %s not found in queue %s", req.WorkerID, req.QueueID)
	}
	if worker.Status != domain.WorkerActive {
		return nil, apperr.New(apperr.WorkerInactive, "worker %s is %s", req.WorkerID, worker.Status)
	}

	candidates, err := e.store.PendingCandidates(ctx, req.QueueID, e.config.FetchScanLimit)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		if len(req.RequiredFields) > 0 && !matcher.RequiredFieldsMatch(candidate.Args, req.RequiredFields) {
			continue
		}
		if req.ExtraFilter != nil {
			doc := domain.Object(map[string]domain.Value{
				"args":     candidate.Args,
				"metadata": candidate.Metadata,
			})
			if !matcher.Match(doc, *req.ExtraFilter) {
				continue
			}
		}

		now := e.now()
		updated, err := e.store.UpdateTaskCAS(ctx, candidate.ID, candidate.ETag, func(t *domain.Task) {
			t.Status = domain.TaskRunning
			t.WorkerID = req.WorkerID
			t.StartTime = &now
			t.LastHeartbeat = &now
			if req.HeartbeatTimeout != nil {
				t.HeartbeatTimeout = *req.HeartbeatTimeout
			}
		})
		if err != nil {
			if apperr.Is(err, apperr.Conflict) {
				// Another worker won the race; try the next candidate
				// rather than retrying this one.
				continue
			}
			return nil, err
		}

		e.publishTaskEvent(updated.QueueID, updated.ID, string(domain.TaskPending), string(domain.TaskRunning))
		return updated, nil
	}

	// Bounded scan exhausted without a win; caller polls again.
	return nil, nil
}
