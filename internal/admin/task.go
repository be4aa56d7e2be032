package admin

import (
	"context"

	"github.com/labtasker/labtasker/internal/apperr"
	"github.com/labtasker/labtasker/internal/domain"
	"github.com/labtasker/labtasker/internal/matcher"
	"github.com/labtasker/labtasker/internal/store"
)

// SubmitTaskParams is submit-task's request shape.
type SubmitTaskParams struct {
	TaskName         string
	Args             domain.Value
	Metadata         domain.Value
	Cmd              domain.Value
	HeartbeatTimeout *int
	TaskTimeout      *int
	MaxRetries       *int
	Priority         *int
}

// SubmitTask validates args and inserts a new PENDING task.
// heartbeat_timeout defaults to domain.DefaultHeartbeatTimeout (60s) — the
// queue data model carries no per-queue heartbeat_timeout field to
// inherit from.
func (a *Admin) SubmitTask(ctx context.Context, queueName string, p SubmitTaskParams) (*domain.Task, error) {
	q, err := a.store.GetQueueByName(ctx, queueName)
	if err != nil {
		return nil, err
	}
	if p.Args.Kind() != domain.KindObject && !p.Args.IsNull() {
		return nil, apperr.New(apperr.InvalidArgument, "args must be an object")
	}

	heartbeatTimeout := domain.DefaultHeartbeatTimeout
	if p.HeartbeatTimeout != nil {
		if *p.HeartbeatTimeout <= 0 {
			return nil, apperr.New(apperr.InvalidArgument, "heartbeat_timeout must be > 0")
		}
		heartbeatTimeout = *p.HeartbeatTimeout
	}
	maxRetries := domain.DefaultTaskMaxRetries
	if p.MaxRetries != nil {
		if *p.MaxRetries < 0 {
			return nil, apperr.New(apperr.InvalidArgument, "max_retries must be >= 0")
		}
		maxRetries = *p.MaxRetries
	}
	priority := domain.DefaultPriority
	if p.Priority != nil {
		priority = *p.Priority
	}
	if p.TaskTimeout != nil && *p.TaskTimeout <= 0 {
		return nil, apperr.New(apperr.InvalidArgument, "task_timeout must be > 0")
	}

	args := p.Args
	if args.IsNull() {
		args = domain.Object(nil)
	}
	metadata := p.Metadata
	if metadata.IsNull() {
		metadata = domain.Object(nil)
	}

	now := a.clock.Now()
	t := &domain.Task{
		ID:               newID(),
		QueueID:          q.ID,
		TaskName:         p.TaskName,
		Args:             args,
		Metadata:         metadata,
		Cmd:              p.Cmd,
		HeartbeatTimeout: heartbeatTimeout,
		TaskTimeout:      p.TaskTimeout,
		MaxRetries:       maxRetries,
		Priority:         priority,
		Status:           domain.TaskPending,
		Summary:          domain.Object(nil),
		CreatedAt:        now,
		LastModified:     now,
	}
	if err := a.store.CreateTask(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// GetTask loads a task by id.
func (a *Admin) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return a.store.GetTask(ctx, id)
}

// TaskUpdate names the fields update-task may change. Each pointer field
// is applied only if non-nil.
type TaskUpdate struct {
	Args             domain.Value
	HasArgs          bool
	Metadata         domain.Value
	HasMetadata      bool
	Priority         *int
	MaxRetries       *int
	HeartbeatTimeout *int
	TaskTimeout      *int
	HasTaskTimeout   bool // distinguishes "clear task_timeout" from "leave unset"
	Cmd              domain.Value
	HasCmd           bool
	TaskName         *string
}

// UpdateTask applies a CAS-guarded partial update: all fields may change
// while PENDING; only metadata/priority/max_retries may change while
// RUNNING (effective on the next retry); only metadata may change on a
// terminal task.
func (a *Admin) UpdateTask(ctx context.Context, taskID string, u TaskUpdate) (*domain.Task, error) {
	task, err := a.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	terminal := task.Terminal()
	running := task.Status == domain.TaskRunning

	if terminal {
		if u.HasArgs || u.Priority != nil || u.MaxRetries != nil || u.HeartbeatTimeout != nil ||
			u.HasTaskTimeout || u.HasCmd || u.TaskName != nil {
			return nil, apperr.New(apperr.InvalidArgument, "task %s is terminal; only metadata may be updated", taskID)
		}
	} else if running {
		if u.HasArgs || u.HeartbeatTimeout != nil || u.HasTaskTimeout || u.HasCmd || u.TaskName != nil {
			return nil, apperr.New(apperr.InvalidArgument, "task %s is running; only metadata/priority/max_retries may be updated", taskID)
		}
	}

	now := a.clock.Now()
	return a.store.UpdateTaskCAS(ctx, taskID, task.ETag, func(t *domain.Task) {
		if u.HasArgs {
			t.Args = u.Args
		}
		if u.HasMetadata {
			if obj, ok := u.Metadata.Object(); ok {
				for k, v := range obj {
					t.Metadata = t.Metadata.Set(k, v)
				}
			}
		}
		if u.Priority != nil {
			t.Priority = *u.Priority
		}
		if u.MaxRetries != nil {
			t.MaxRetries = *u.MaxRetries
		}
		if u.HeartbeatTimeout != nil {
			t.HeartbeatTimeout = *u.HeartbeatTimeout
		}
		if u.HasTaskTimeout {
			t.TaskTimeout = u.TaskTimeout
		}
		if u.HasCmd {
			t.Cmd = u.Cmd
		}
		if u.TaskName != nil {
			t.TaskName = *u.TaskName
		}
		t.LastModified = now
	})
}

// ResetTask manually restarts a crashed/exhausted task: applies an
// optional settings update and forces the task back to PENDING with
// retries reset to 0.
func (a *Admin) ResetTask(ctx context.Context, taskID string, settings matcher.Update) (*domain.Task, error) {
	task, err := a.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	now := a.clock.Now()
	updated, err := a.store.UpdateTaskCAS(ctx, taskID, task.ETag, func(t *domain.Task) {
		doc := matcher.Apply(taskSettingsDoc(t), settings)
		applyTaskSettingsDoc(t, doc)
		t.Status = domain.TaskPending
		t.Retries = 0
		t.WorkerID = ""
		t.StartTime = nil
		t.LastHeartbeat = nil
		t.LastModified = now
	})
	if err != nil {
		return nil, err
	}
	a.engine.NotifyTaskTransition(updated.QueueID, updated.ID, string(task.Status), string(updated.Status))
	return updated, nil
}

// CancelTask cancels a task from any non-terminal state. If the task has
// already reached a terminal state, this is a no-op that returns the
// observed final state.
func (a *Admin) CancelTask(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := a.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Terminal() {
		return task, nil
	}
	now := a.clock.Now()
	updated, err := a.store.UpdateTaskCAS(ctx, taskID, task.ETag, func(t *domain.Task) {
		t.Status = domain.TaskCancelled
		t.WorkerID = ""
		t.StartTime = nil
		t.LastHeartbeat = nil
		t.LastModified = now
	})
	if err != nil {
		if apperr.Is(err, apperr.Conflict) {
			// Lost a race. If a concurrent terminal transition won it, the
			// cancel is a no-op and the now-current state is returned;
			// otherwise the CONFLICT is surfaced so the caller can retry.
			cur, getErr := a.store.GetTask(ctx, taskID)
			if getErr != nil {
				return nil, getErr
			}
			if cur.Terminal() {
				return cur, nil
			}
		}
		return nil, err
	}
	a.engine.NotifyTaskTransition(updated.QueueID, updated.ID, string(task.Status), string(updated.Status))
	return updated, nil
}

// DeleteTask deletes a task outright.
func (a *Admin) DeleteTask(ctx context.Context, taskID string) error {
	return a.store.DeleteTask(ctx, taskID)
}

// ListTasks returns a filtered, cursor-paginated page of a queue's tasks.
func (a *Admin) ListTasks(ctx context.Context, queueName string, filter *matcher.Filter, cursor *store.Cursor, limit int) (store.Page[*domain.Task], error) {
	q, err := a.store.GetQueueByName(ctx, queueName)
	if err != nil {
		return store.Page[*domain.Task]{}, err
	}
	return a.store.ListTasks(ctx, q.ID, filter, cursor, limit)
}

// BulkResult is one task's outcome within a bulk update; partial success
// is reported per-id.
type BulkResult struct {
	TaskID string
	Error  error
}

// BulkUpdateTasks applies update to every task in queueName matching
// filter; each document is CAS'd individually.
func (a *Admin) BulkUpdateTasks(ctx context.Context, queueName string, filter *matcher.Filter, update matcher.Update) ([]BulkResult, error) {
	q, err := a.store.GetQueueByName(ctx, queueName)
	if err != nil {
		return nil, err
	}

	var results []BulkResult
	var cursor *store.Cursor
	for {
		page, err := a.store.ListTasks(ctx, q.ID, filter, cursor, 100)
		if err != nil {
			return results, err
		}
		now := a.clock.Now()
		for _, t := range page.Items {
			_, err := a.store.UpdateTaskCAS(ctx, t.ID, t.ETag, func(cur *domain.Task) {
				doc := matcher.Apply(taskArgsMetadataDoc(cur), update)
				applyTaskArgsMetadataDoc(cur, doc)
				cur.LastModified = now
			})
			results = append(results, BulkResult{TaskID: t.ID, Error: err})
		}
		if page.Next == nil {
			break
		}
		cursor = page.Next
	}
	return results, nil
}

func taskArgsMetadataDoc(t *domain.Task) domain.Value {
	return domain.Object(map[string]domain.Value{
		"args":     t.Args,
		"metadata": t.Metadata,
		"priority": domain.Number(float64(t.Priority)),
	})
}

func applyTaskArgsMetadataDoc(t *domain.Task, doc domain.Value) {
	if v, ok := doc.Get("args"); ok {
		t.Args = v
	}
	if v, ok := doc.Get("metadata"); ok {
		t.Metadata = v
	}
	if v, ok := doc.Get("priority"); ok {
		if n, ok := v.Number(); ok {
			t.Priority = int(n)
		}
	}
}

func taskSettingsDoc(t *domain.Task) domain.Value {
	m := map[string]domain.Value{
		"args":              t.Args,
		"metadata":          t.Metadata,
		"priority":          domain.Number(float64(t.Priority)),
		"max_retries":       domain.Number(float64(t.MaxRetries)),
		"heartbeat_timeout": domain.Number(float64(t.HeartbeatTimeout)),
		"task_name":         domain.String(t.TaskName),
	}
	if !t.Cmd.IsNull() {
		m["cmd"] = t.Cmd
	}
	if t.TaskTimeout != nil {
		m["task_timeout"] = domain.Number(float64(*t.TaskTimeout))
	}
	return domain.Object(m)
}

func applyTaskSettingsDoc(t *domain.Task, doc domain.Value) {
	if v, ok := doc.Get("args"); ok {
		t.Args = v
	}
	if v, ok := doc.Get("metadata"); ok {
		t.Metadata = v
	}
	if v, ok := doc.Get("priority"); ok {
		if n, ok := v.Number(); ok {
			t.Priority = int(n)
		}
	}
	if v, ok := doc.Get("max_retries"); ok {
		if n, ok := v.Number(); ok {
			t.MaxRetries = int(n)
		}
	}
	if v, ok := doc.Get("heartbeat_timeout"); ok {
		if n, ok := v.Number(); ok {
			t.HeartbeatTimeout = int(n)
		}
	}
	if v, ok := doc.Get("task_name"); ok {
		if s, ok := v.String(); ok {
			t.TaskName = s
		}
	}
	if v, ok := doc.Get("cmd"); ok {
		t.Cmd = v
	}
	if v, ok := doc.Get("task_timeout"); ok {
		if n, ok := v.Number(); ok {
			i := int(n)
			t.TaskTimeout = &i
		}
	}
}
