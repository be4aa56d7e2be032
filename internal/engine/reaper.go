package engine

import (
	"context"

	"github.com/labtasker/labtasker/internal/apperr"
	"github.com/labtasker/labtasker/internal/domain"
)

// RunReaperOnce sweeps every RUNNING task for an expired heartbeat or an
// exceeded task_timeout, treating each expiry as if the owning worker had
// reported failed. It is safe to call concurrently from multiple engine
// replicas: each task's transition is CAS'd on etag, so a second sweep
// observing an already-transitioned task simply finds it no longer
// RUNNING and skips it.
//
// It returns the number of tasks it transitioned.
func (e *Engine) RunReaperOnce(ctx context.Context) (int, error) {
	running, err := e.store.RunningTasks(ctx)
	if err != nil {
		return 0, err
	}

	now := e.now()
	transitioned := 0
	for _, task := range running {
		heartbeatExpired := task.LastHeartbeat != nil && task.HeartbeatTimeout > 0 &&
			now.Sub(*task.LastHeartbeat).Seconds() > float64(task.HeartbeatTimeout)
		taskTimedOut := task.TaskTimeout != nil && task.StartTime != nil &&
			now.Sub(*task.StartTime).Seconds() > float64(*task.TaskTimeout)

		if !heartbeatExpired && !taskTimedOut {
			continue
		}

		workerID := task.WorkerID
		err := e.applyFailure(ctx, task.ID, workerID, domain.Object(map[string]domain.Value{
			"labtasker_error": domain.String("heartbeat or task execution timed out"),
		}), true, heartbeatExpired)
		if err != nil {
			if apperr.Is(err, apperr.NotOwned) || apperr.Is(err, apperr.Conflict) {
				// Already transitioned by a concurrent report or a
				// concurrent reaper replica; not an error.
				continue
			}
			return transitioned, err
		}
		transitioned++
	}
	return transitioned, nil
}
