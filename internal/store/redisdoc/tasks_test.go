package redisdoc

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labtasker/labtasker/internal/apperr"
	"github.com/labtasker/labtasker/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewFromClient(rdb)
}

func newTestTask(id, queueID string, priority int, createdAt time.Time) *domain.Task {
	return &domain.Task{
		ID:               id,
		QueueID:          queueID,
		Args:             domain.Object(nil),
		Metadata:         domain.Object(nil),
		Summary:          domain.Object(nil),
		HeartbeatTimeout: domain.DefaultHeartbeatTimeout,
		MaxRetries:       domain.DefaultTaskMaxRetries,
		Priority:         priority,
		Status:           domain.TaskPending,
		CreatedAt:        createdAt,
		LastModified:     createdAt,
	}
}

func TestCreateAndGetTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := newTestTask("t1", "q1", 10, time.Now())
	require.NoError(t, s.CreateTask(ctx, task))

	got, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "q1", got.QueueID)
	assert.Equal(t, domain.TaskPending, got.Status)
}

func TestGetTaskNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTask(context.Background(), "missing")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestUpdateTaskCASConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := newTestTask("t1", "q1", 10, time.Now())
	require.NoError(t, s.CreateTask(ctx, task))

	_, err := s.UpdateTaskCAS(ctx, "t1", 999, func(t *domain.Task) {
		t.Status = domain.TaskRunning
	})
	assert.True(t, apperr.Is(err, apperr.Conflict))
}

func TestUpdateTaskCASSuccessMaintainsStatusIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := newTestTask("t1", "q1", 10, time.Now())
	require.NoError(t, s.CreateTask(ctx, task))

	updated, err := s.UpdateTaskCAS(ctx, "t1", task.ETag, func(t *domain.Task) {
		t.Status = domain.TaskRunning
		t.WorkerID = "w1"
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskRunning, updated.Status)
	assert.Equal(t, task.ETag+1, updated.ETag)

	pending, err := s.PendingCandidates(ctx, "q1", 32)
	require.NoError(t, err)
	assert.Empty(t, pending)

	running, err := s.RunningTasks(ctx)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, "t1", running[0].ID)
}

func TestPendingCandidatesOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	low := newTestTask("low", "q1", 1, base)
	high := newTestTask("high", "q1", 10, base.Add(time.Second))
	mid := newTestTask("mid", "q1", 10, base)

	require.NoError(t, s.CreateTask(ctx, low))
	require.NoError(t, s.CreateTask(ctx, high))
	require.NoError(t, s.CreateTask(ctx, mid))

	candidates, err := s.PendingCandidates(ctx, "q1", 32)
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, "mid", candidates[0].ID)
	assert.Equal(t, "high", candidates[1].ID)
	assert.Equal(t, "low", candidates[2].ID)
}

func TestPendingCandidatesBounded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 5; i++ {
		task := newTestTask(string(rune('a'+i)), "q1", 10, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, s.CreateTask(ctx, task))
	}

	candidates, err := s.PendingCandidates(ctx, "q1", 2)
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}

func TestDeleteTaskRemovesIndices(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := newTestTask("t1", "q1", 10, time.Now())
	require.NoError(t, s.CreateTask(ctx, task))
	require.NoError(t, s.DeleteTask(ctx, "t1"))

	_, err := s.GetTask(ctx, "t1")
	assert.True(t, apperr.Is(err, apperr.NotFound))

	candidates, err := s.PendingCandidates(ctx, "q1", 32)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
