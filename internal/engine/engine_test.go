package engine

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labtasker/labtasker/internal/apperr"
	"github.com/labtasker/labtasker/internal/clock"
	"github.com/labtasker/labtasker/internal/domain"
	"github.com/labtasker/labtasker/internal/eventbus"
	"github.com/labtasker/labtasker/internal/store/redisdoc"
)

type testHarness struct {
	store *redisdoc.Store
	bus   *eventbus.Bus
	clk   *clock.Fake
	eng   *Engine
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := redisdoc.NewFromClient(rdb)
	bus := eventbus.New(16)
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	eng := New(s, bus, clk, DefaultConfig())
	return &testHarness{store: s, bus: bus, clk: clk, eng: eng}
}

func (h *testHarness) createQueue(t *testing.T, ctx context.Context, id, name string) *domain.Queue {
	t.Helper()
	now := h.clk.Now()
	q := &domain.Queue{ID: id, Name: name, Metadata: map[string]domain.Value{}, CreatedAt: now, LastModified: now}
	require.NoError(t, h.store.CreateQueue(ctx, q))
	return q
}

func (h *testHarness) createWorker(t *testing.T, ctx context.Context, id, queueID string) *domain.Worker {
	t.Helper()
	now := h.clk.Now()
	w := &domain.Worker{
		ID: id, QueueID: queueID, Metadata: domain.Object(nil),
		MaxRetries: domain.DefaultWorkerMaxRetries, Status: domain.WorkerActive,
		CreatedAt: now, LastModified: now,
	}
	require.NoError(t, h.store.CreateWorker(ctx, w))
	return w
}

func (h *testHarness) createTask(t *testing.T, ctx context.Context, id, queueID string, maxRetries int) *domain.Task {
	t.Helper()
	now := h.clk.Now()
	task := &domain.Task{
		ID: id, QueueID: queueID, Args: domain.Object(nil), Metadata: domain.Object(nil),
		Summary: domain.Object(nil), HeartbeatTimeout: 60, MaxRetries: maxRetries,
		Priority: domain.DefaultPriority, Status: domain.TaskPending,
		CreatedAt: now, LastModified: now,
	}
	require.NoError(t, h.store.CreateTask(ctx, task))
	return task
}

func TestFetchNextLeasesAndTransitionsTask(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.createQueue(t, ctx, "q1", "team-a")
	h.createWorker(t, ctx, "w1", "q1")
	h.createTask(t, ctx, "t1", "q1", 3)

	task, err := h.eng.FetchNext(ctx, FetchRequest{QueueID: "q1", WorkerID: "w1"})
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, domain.TaskRunning, task.Status)
	assert.Equal(t, "w1", task.WorkerID)
	assert.Equal(t, "t1", task.ID)

	// A second fetch finds nothing left to lease.
	again, err := h.eng.FetchNext(ctx, FetchRequest{QueueID: "q1", WorkerID: "w1"})
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestFetchNextNoTaskAvailableIsNotAnError(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createQueue(t, ctx, "q1", "team-a")
	h.createWorker(t, ctx, "w1", "q1")

	task, err := h.eng.FetchNext(ctx, FetchRequest{QueueID: "q1", WorkerID: "w1"})
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestFetchNextRejectsInactiveWorker(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createQueue(t, ctx, "q1", "team-a")
	w := h.createWorker(t, ctx, "w1", "q1")
	_, err := h.store.UpdateWorkerCAS(ctx, w.ID, w.ETag, func(w *domain.Worker) {
		w.Status = domain.WorkerSuspended
	})
	require.NoError(t, err)
	h.createTask(t, ctx, "t1", "q1", 3)

	_, err = h.eng.FetchNext(ctx, FetchRequest{QueueID: "q1", WorkerID: "w1"})
	assert.True(t, apperr.Is(err, apperr.WorkerInactive))
}

func TestFetchNextRequiredFieldsFilter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createQueue(t, ctx, "q1", "team-a")
	h.createWorker(t, ctx, "w1", "q1")

	missing := h.createTask(t, ctx, "missing-field", "q1", 3)
	_, err := h.store.UpdateTaskCAS(ctx, missing.ID, missing.ETag, func(t *domain.Task) {
		t.Args = domain.Object(map[string]domain.Value{"other": domain.Number(1)})
	})
	require.NoError(t, err)

	has := h.createTask(t, ctx, "has-field", "q1", 3)
	_, err = h.store.UpdateTaskCAS(ctx, has.ID, has.ETag, func(t *domain.Task) {
		t.Args = domain.Object(map[string]domain.Value{"lr": domain.Number(0.1)})
	})
	require.NoError(t, err)

	task, err := h.eng.FetchNext(ctx, FetchRequest{QueueID: "q1", WorkerID: "w1", RequiredFields: []string{"lr"}})
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "has-field", task.ID)
}

func TestHeartbeatRejectsNonOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createQueue(t, ctx, "q1", "team-a")
	h.createWorker(t, ctx, "w1", "q1")
	h.createWorker(t, ctx, "w2", "q1")
	h.createTask(t, ctx, "t1", "q1", 3)

	_, err := h.eng.FetchNext(ctx, FetchRequest{QueueID: "q1", WorkerID: "w1"})
	require.NoError(t, err)

	err = h.eng.Heartbeat(ctx, "t1", "w2")
	assert.True(t, apperr.Is(err, apperr.NotOwned))

	err = h.eng.Heartbeat(ctx, "t1", "w1")
	assert.NoError(t, err)
}

func TestReportSuccessResetsWorkerRetries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createQueue(t, ctx, "q1", "team-a")
	w := h.createWorker(t, ctx, "w1", "q1")
	_, err := h.store.UpdateWorkerCAS(ctx, w.ID, w.ETag, func(w *domain.Worker) { w.Retries = 2 })
	require.NoError(t, err)
	h.createTask(t, ctx, "t1", "q1", 3)

	task, err := h.eng.FetchNext(ctx, FetchRequest{QueueID: "q1", WorkerID: "w1"})
	require.NoError(t, err)
	require.NotNil(t, task)

	require.NoError(t, h.eng.Report(ctx, "t1", "w1", OutcomeSuccess, domain.Object(map[string]domain.Value{"ok": domain.Bool(true)})))

	got, err := h.store.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskSuccess, got.Status)
	assert.Empty(t, got.WorkerID)

	gotWorker, err := h.store.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 0, gotWorker.Retries)
}

func TestReportFailedRequeuesUntilExhausted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createQueue(t, ctx, "q1", "team-a")
	h.createWorker(t, ctx, "w1", "q1")
	h.createTask(t, ctx, "t1", "q1", 2)

	for i := 0; i < 2; i++ {
		task, err := h.eng.FetchNext(ctx, FetchRequest{QueueID: "q1", WorkerID: "w1"})
		require.NoError(t, err)
		require.NotNil(t, task)
		require.NoError(t, h.eng.Report(ctx, "t1", "w1", OutcomeFailed, domain.Null()))

		got, err := h.store.GetTask(ctx, "t1")
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, domain.TaskPending, got.Status)
		} else {
			assert.Equal(t, domain.TaskFailed, got.Status)
			assert.True(t, got.Terminal())
		}
	}
}

func TestReportRejectsNonOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createQueue(t, ctx, "q1", "team-a")
	h.createWorker(t, ctx, "w1", "q1")
	h.createWorker(t, ctx, "w2", "q1")
	h.createTask(t, ctx, "t1", "q1", 3)

	_, err := h.eng.FetchNext(ctx, FetchRequest{QueueID: "q1", WorkerID: "w1"})
	require.NoError(t, err)

	err = h.eng.Report(ctx, "t1", "w2", OutcomeSuccess, domain.Null())
	assert.True(t, apperr.Is(err, apperr.NotOwned))
}

func TestReaperReapsExpiredHeartbeatAndCrashesWorker(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createQueue(t, ctx, "q1", "team-a")
	h.createWorker(t, ctx, "w1", "q1")
	task := h.createTask(t, ctx, "t1", "q1", 3)
	_, err := h.store.UpdateTaskCAS(ctx, task.ID, task.ETag, func(t *domain.Task) {
		t.HeartbeatTimeout = 5
	})
	require.NoError(t, err)

	leased, err := h.eng.FetchNext(ctx, FetchRequest{QueueID: "q1", WorkerID: "w1"})
	require.NoError(t, err)
	require.NotNil(t, leased)

	h.clk.Advance(time.Hour)

	n, err := h.eng.RunReaperOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := h.store.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPending, got.Status)

	worker, err := h.store.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, domain.WorkerCrashed, worker.Status)
}

func TestReaperIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createQueue(t, ctx, "q1", "team-a")
	h.createWorker(t, ctx, "w1", "q1")
	task := h.createTask(t, ctx, "t1", "q1", 3)
	_, err := h.store.UpdateTaskCAS(ctx, task.ID, task.ETag, func(t *domain.Task) { t.HeartbeatTimeout = 5 })
	require.NoError(t, err)

	_, err = h.eng.FetchNext(ctx, FetchRequest{QueueID: "q1", WorkerID: "w1"})
	require.NoError(t, err)
	h.clk.Advance(time.Hour)

	n1, err := h.eng.RunReaperOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n1)

	n2, err := h.eng.RunReaperOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n2)
}
