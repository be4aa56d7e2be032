package redisdoc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labtasker/labtasker/internal/apperr"
	"github.com/labtasker/labtasker/internal/domain"
)

func newTestWorker(id, queueID string) *domain.Worker {
	now := time.Now()
	return &domain.Worker{
		ID:           id,
		QueueID:      queueID,
		Metadata:     domain.Object(nil),
		MaxRetries:   domain.DefaultWorkerMaxRetries,
		Status:       domain.WorkerActive,
		CreatedAt:    now,
		LastModified: now,
	}
}

func TestCreateAndGetWorker(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w := newTestWorker("w1", "q1")
	require.NoError(t, s.CreateWorker(ctx, w))

	got, err := s.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, domain.WorkerActive, got.Status)
}

func TestUpdateWorkerCASConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w := newTestWorker("w1", "q1")
	require.NoError(t, s.CreateWorker(ctx, w))

	_, err := s.UpdateWorkerCAS(ctx, "w1", 999, func(w *domain.Worker) {
		w.Status = domain.WorkerCrashed
	})
	assert.True(t, apperr.Is(err, apperr.Conflict))
}

func TestDeleteWorkerCascadeClearsTaskOwnership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w := newTestWorker("w1", "q1")
	require.NoError(t, s.CreateWorker(ctx, w))

	task := newTestTask("t1", "q1", 10, time.Now())
	task.Status = domain.TaskRunning
	task.WorkerID = "w1"
	require.NoError(t, s.CreateTask(ctx, task))

	require.NoError(t, s.DeleteWorker(ctx, "w1", true))

	got, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, got.WorkerID)

	_, err = s.GetWorker(ctx, "w1")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestListWorkersPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 3; i++ {
		w := newTestWorker(string(rune('a'+i)), "q1")
		w.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.CreateWorker(ctx, w))
	}

	page, err := s.ListWorkers(ctx, "q1", nil, nil, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotNil(t, page.Next)

	next, err := s.ListWorkers(ctx, "q1", nil, page.Next, 2)
	require.NoError(t, err)
	assert.Len(t, next.Items, 1)
	assert.Nil(t, next.Next)
}
