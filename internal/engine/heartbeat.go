package engine

import (
	"context"

	"github.com/labtasker/labtasker/internal/apperr"
	"github.com/labtasker/labtasker/internal/domain"
)

// Heartbeat refreshes a task's lease. It never transitions status; it
// purely bounds the reaper's definition of liveness.
func (e *Engine) Heartbeat(ctx context.Context, taskID, workerID string) error {
	check := func(t *domain.Task) error {
		if t.Status != domain.TaskRunning {
			return apperr.New(apperr.NotOwned, "task %s is not running", taskID)
		}
		if t.WorkerID != workerID {
			return apperr.New(apperr.NotOwned, "task %s is not owned by worker %s", taskID, workerID)
		}
		return nil
	}
	now := e.now()
	_, _, err := e.retryTaskCAS(ctx, taskID, check, func(t *domain.Task) {
		t.LastHeartbeat = &now
	})
	return err
}
