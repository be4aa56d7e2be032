package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labtasker/labtasker/internal/apperr"
	"github.com/labtasker/labtasker/internal/domain"
	"github.com/labtasker/labtasker/internal/engine"
	"github.com/labtasker/labtasker/internal/matcher"
)

func TestSubmitTaskDefaults(t *testing.T) {
	a, _ := newTestAdmin(t)
	ctx := context.Background()
	mustCreateQueue(t, a, "team-a", "secret")

	task, err := a.SubmitTask(ctx, "team-a", SubmitTaskParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPending, task.Status)
	assert.Equal(t, domain.DefaultHeartbeatTimeout, task.HeartbeatTimeout)
	assert.Equal(t, domain.DefaultTaskMaxRetries, task.MaxRetries)
	assert.Equal(t, domain.DefaultPriority, task.Priority)
}

func TestSubmitTaskRejectsNonObjectArgs(t *testing.T) {
	a, _ := newTestAdmin(t)
	ctx := context.Background()
	mustCreateQueue(t, a, "team-a", "secret")

	_, err := a.SubmitTask(ctx, "team-a", SubmitTaskParams{Args: domain.String("bad")})
	assert.True(t, apperr.Is(err, apperr.InvalidArgument))
}

func TestSubmitTaskRejectsNonPositiveTaskTimeout(t *testing.T) {
	a, _ := newTestAdmin(t)
	ctx := context.Background()
	mustCreateQueue(t, a, "team-a", "secret")

	zero := 0
	_, err := a.SubmitTask(ctx, "team-a", SubmitTaskParams{TaskTimeout: &zero})
	assert.True(t, apperr.Is(err, apperr.InvalidArgument))
}

func TestUpdateTaskAllFieldsWhilePending(t *testing.T) {
	a, _ := newTestAdmin(t)
	ctx := context.Background()
	mustCreateQueue(t, a, "team-a", "secret")
	task, err := a.SubmitTask(ctx, "team-a", SubmitTaskParams{})
	require.NoError(t, err)

	priority := 5
	maxRetries := 7
	updated, err := a.UpdateTask(ctx, task.ID, TaskUpdate{Priority: &priority, MaxRetries: &maxRetries})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Priority)
	assert.Equal(t, 7, updated.MaxRetries)
}

func TestUpdateTaskRunningRestrictsToMetadataPriorityMaxRetries(t *testing.T) {
	a, _ := newTestAdmin(t)
	ctx := context.Background()
	mustCreateQueue(t, a, "team-a", "secret")
	task, err := a.SubmitTask(ctx, "team-a", SubmitTaskParams{})
	require.NoError(t, err)
	w, err := a.RegisterWorker(ctx, "team-a", RegisterWorkerParams{})
	require.NoError(t, err)

	leased, err := a.engine.FetchNext(ctx, engine.FetchRequest{QueueID: task.QueueID, WorkerID: w.ID})
	require.NoError(t, err)
	require.NotNil(t, leased)

	heartbeatTimeout := 10
	_, err = a.UpdateTask(ctx, task.ID, TaskUpdate{HeartbeatTimeout: &heartbeatTimeout})
	assert.True(t, apperr.Is(err, apperr.InvalidArgument))

	priority := 2
	updated, err := a.UpdateTask(ctx, task.ID, TaskUpdate{Priority: &priority})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Priority)
}

func TestUpdateTaskRejectsFieldChangeOnTerminal(t *testing.T) {
	a, _ := newTestAdmin(t)
	ctx := context.Background()
	mustCreateQueue(t, a, "team-a", "secret")
	task, err := a.SubmitTask(ctx, "team-a", SubmitTaskParams{})
	require.NoError(t, err)

	cancelled, err := a.CancelTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCancelled, cancelled.Status)

	priority := 1
	_, err = a.UpdateTask(ctx, task.ID, TaskUpdate{Priority: &priority})
	assert.True(t, apperr.Is(err, apperr.InvalidArgument))

	metadataOnly, err := a.UpdateTask(ctx, task.ID, TaskUpdate{
		HasMetadata: true,
		Metadata:    domain.Object(map[string]domain.Value{"note": domain.String("done")}),
	})
	require.NoError(t, err)
	note, ok := metadataOnly.Metadata.Get("note")
	require.True(t, ok)
	s, _ := note.String()
	assert.Equal(t, "done", s)
}

func TestCancelTaskIsNoOpOnTerminal(t *testing.T) {
	a, _ := newTestAdmin(t)
	ctx := context.Background()
	mustCreateQueue(t, a, "team-a", "secret")
	task, err := a.SubmitTask(ctx, "team-a", SubmitTaskParams{})
	require.NoError(t, err)

	first, err := a.CancelTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCancelled, first.Status)

	second, err := a.CancelTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCancelled, second.Status)
}

func TestResetTaskForcesPending(t *testing.T) {
	a, _ := newTestAdmin(t)
	ctx := context.Background()
	mustCreateQueue(t, a, "team-a", "secret")
	maxRetries := 1
	task, err := a.SubmitTask(ctx, "team-a", SubmitTaskParams{MaxRetries: &maxRetries})
	require.NoError(t, err)

	w, err := a.RegisterWorker(ctx, "team-a", RegisterWorkerParams{})
	require.NoError(t, err)
	leased, err := a.engine.FetchNext(ctx, engine.FetchRequest{QueueID: task.QueueID, WorkerID: w.ID})
	require.NoError(t, err)
	require.NotNil(t, leased)
	require.NoError(t, a.engine.Report(ctx, task.ID, w.ID, engine.OutcomeFailed, domain.Null()))

	got, err := a.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.True(t, got.Terminal())

	reset, err := a.ResetTask(ctx, task.ID, matcher.Update{})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPending, reset.Status)
	assert.Equal(t, 0, reset.Retries)
}

func TestListTasksFilter(t *testing.T) {
	a, _ := newTestAdmin(t)
	ctx := context.Background()
	mustCreateQueue(t, a, "team-a", "secret")

	_, err := a.SubmitTask(ctx, "team-a", SubmitTaskParams{Args: domain.Object(map[string]domain.Value{"tag": domain.String("cv")})})
	require.NoError(t, err)
	_, err = a.SubmitTask(ctx, "team-a", SubmitTaskParams{Args: domain.Object(map[string]domain.Value{"tag": domain.String("nlp")})})
	require.NoError(t, err)

	filter := matcher.Eq("args.tag", domain.String("cv"))
	page, err := a.ListTasks(ctx, "team-a", &filter, nil, 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestBulkUpdateTasks(t *testing.T) {
	a, _ := newTestAdmin(t)
	ctx := context.Background()
	mustCreateQueue(t, a, "team-a", "secret")

	for i := 0; i < 3; i++ {
		_, err := a.SubmitTask(ctx, "team-a", SubmitTaskParams{})
		require.NoError(t, err)
	}

	update := matcher.Update{Sets: map[string]domain.Value{"metadata.batch": domain.String("b1")}}
	results, err := a.BulkUpdateTasks(ctx, "team-a", nil, update)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.NoError(t, r.Error)
	}
}
