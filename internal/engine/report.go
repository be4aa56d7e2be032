package engine

import (
	"context"

	"github.com/labtasker/labtasker/internal/apperr"
	"github.com/labtasker/labtasker/internal/domain"
)

// Report applies a worker-reported outcome to a task it owns. Reporting a
// task the worker does not own returns NOT_OWNED and performs no changes.
func (e *Engine) Report(ctx context.Context, taskID, workerID string, outcome Outcome, summary domain.Value) error {
	ownership := func(t *domain.Task) error {
		if t.Status != domain.TaskRunning || t.WorkerID != workerID {
			return apperr.New(apperr.NotOwned, "task %s is not owned by worker %s", taskID, workerID)
		}
		return nil
	}

	switch outcome {
	case OutcomeSuccess:
		before, after, err := e.retryTaskCAS(ctx, taskID, ownership, func(t *domain.Task) {
			t.Status = domain.TaskSuccess
			t.Summary = summary
			t.WorkerID = ""
			t.StartTime = nil
			t.LastHeartbeat = nil
		})
		if err != nil {
			return err
		}
		e.publishTaskEvent(after.QueueID, after.ID, string(before.Status), string(after.Status))
		return e.resetWorkerRetries(ctx, workerID)

	case OutcomeCancelled:
		before, after, err := e.retryTaskCAS(ctx, taskID, ownership, func(t *domain.Task) {
			t.Status = domain.TaskCancelled
			t.Summary = summary
			t.WorkerID = ""
			t.StartTime = nil
			t.LastHeartbeat = nil
		})
		if err != nil {
			return err
		}
		e.publishTaskEvent(after.QueueID, after.ID, string(before.Status), string(after.Status))
		return nil

	case OutcomeFailed:
		return e.applyFailure(ctx, taskID, workerID, summary, false, false)

	default:
		return apperr.New(apperr.InvalidArgument, "unknown outcome %q", outcome)
	}
}

// applyFailure is shared by Report(failed) and the reaper: it increments
// retries, re-queues to PENDING or terminates to FAILED depending on
// max_retries, and applies the worker suspension/crash policy.
// crashWorker marks the owning worker CRASHED unconditionally (the
// reaper's heartbeat-timeout path); otherwise the normal
// consecutive-failure suspension rule applies. mergeSummary merges
// summary's top-level keys into the task's existing summary document
// instead of replacing it wholesale — used by the reaper to tag a timeout
// without discarding whatever the task had already reported.
func (e *Engine) applyFailure(ctx context.Context, taskID, workerID string, summary domain.Value, mergeSummary, crashWorker bool) error {
	check := func(t *domain.Task) error {
		if t.Status != domain.TaskRunning || t.WorkerID != workerID {
			return apperr.New(apperr.NotOwned, "task %s is not owned by worker %s", taskID, workerID)
		}
		return nil
	}

	before, after, err := e.retryTaskCAS(ctx, taskID, check, func(t *domain.Task) {
		t.Retries++
		if mergeSummary {
			if obj, ok := summary.Object(); ok {
				for k, v := range obj {
					t.Summary = t.Summary.Set(k, v)
				}
			}
		} else if !summary.IsNull() {
			t.Summary = summary
		}
		if t.Retries < t.MaxRetries {
			t.Status = domain.TaskPending
			t.WorkerID = ""
			t.StartTime = nil
			t.LastHeartbeat = nil
		} else {
			t.Status = domain.TaskFailed
		}
	})
	if err != nil {
		return err
	}
	e.publishTaskEvent(after.QueueID, after.ID, string(before.Status), string(after.Status))

	return e.applyWorkerFailure(ctx, workerID, crashWorker)
}

// applyWorkerFailure increments a worker's consecutive-failure counter and
// applies suspension/crash policy.
func (e *Engine) applyWorkerFailure(ctx context.Context, workerID string, crashWorker bool) error {
	before, after, err := e.retryWorkerCAS(ctx, workerID, nil, func(w *domain.Worker) {
		w.Retries++
		switch {
		case crashWorker:
			w.Status = domain.WorkerCrashed
		case w.Retries >= w.MaxRetries:
			w.Status = domain.WorkerSuspended
		}
	})
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			// Worker was deleted concurrently; the task-side transition
			// already applied, nothing more to do.
			return nil
		}
		return err
	}
	if before.Status != after.Status {
		e.publishWorkerEvent(after.QueueID, after.ID, string(before.Status), string(after.Status))
	}
	return nil
}

// resetWorkerRetries clears a worker's consecutive-failure counter on
// task success.
func (e *Engine) resetWorkerRetries(ctx context.Context, workerID string) error {
	_, _, err := e.retryWorkerCAS(ctx, workerID, nil, func(w *domain.Worker) {
		w.Retries = 0
	})
	if err != nil && apperr.Is(err, apperr.NotFound) {
		return nil
	}
	return err
}
