package redisdoc

import (
	"context"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/labtasker/labtasker/internal/apperr"
	"github.com/labtasker/labtasker/internal/domain"
	"github.com/labtasker/labtasker/internal/matcher"
	"github.com/labtasker/labtasker/internal/store"
)

// CreateTask inserts a new task document and indexes it by queue and
// status.
func (s *Store) CreateTask(ctx context.Context, t *domain.Task) error {
	key := taskKey(t.ID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, taskToHash(t))
		pipe.SAdd(ctx, queueTasksKey(t.QueueID), t.ID)
		pipe.SAdd(ctx, queueTasksStatusKey(t.QueueID, string(t.Status)), t.ID)
		if t.Status == domain.TaskRunning {
			pipe.SAdd(ctx, runningTasksKey, t.ID)
		}
		return nil
	})
	if err != nil {
		return apperr.Wrap(apperr.Transient, err, "create task %s", t.ID)
	}
	return nil
}

// GetTask loads a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	m, err := s.rdb.HGetAll(ctx, taskKey(id)).Result()
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, err, "get task %s", id)
	}
	task := hashToTask(m)
	if task == nil {
		return nil, apperr.New(apperr.NotFound, "task %s not found", id)
	}
	return task, nil
}

// DeleteTask removes a task document and its index memberships.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, taskKey(id))
		pipe.SRem(ctx, queueTasksKey(task.QueueID), id)
		pipe.SRem(ctx, queueTasksStatusKey(task.QueueID, string(task.Status)), id)
		pipe.SRem(ctx, runningTasksKey, id)
		return nil
	})
	if err != nil {
		return apperr.Wrap(apperr.Transient, err, "delete task %s", id)
	}
	return nil
}

// UpdateTaskCAS implements store.Store's optimistic-concurrency update.
// mutate is called with the current document loaded inside the Redis
// transaction; it must only set fields, not perform I/O. The store bumps
// ETag and maintains status indices based on the status mutate leaves the
// document in. It does not set LastModified: that field changes only when
// mutate sets it.
func (s *Store) UpdateTaskCAS(ctx context.Context, id string, expectedEtag int64, mutate func(*domain.Task)) (*domain.Task, error) {
	var result *domain.Task
	var txErr error

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		m, err := tx.HGetAll(ctx, taskKey(id)).Result()
		if err != nil {
			return err
		}
		task := hashToTask(m)
		if task == nil {
			txErr = apperr.New(apperr.NotFound, "task %s not found", id)
			return nil
		}
		if task.ETag != expectedEtag {
			txErr = apperr.New(apperr.Conflict, "task %s etag mismatch", id)
			return nil
		}
		oldStatus := task.Status
		mutate(task)
		task.ETag++

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, taskKey(id), taskToHash(task))
			if oldStatus != task.Status {
				pipe.SRem(ctx, queueTasksStatusKey(task.QueueID, string(oldStatus)), id)
				pipe.SAdd(ctx, queueTasksStatusKey(task.QueueID, string(task.Status)), id)
				if oldStatus == domain.TaskRunning {
					pipe.SRem(ctx, runningTasksKey, id)
				}
				if task.Status == domain.TaskRunning {
					pipe.SAdd(ctx, runningTasksKey, id)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = task
		return nil
	}, taskKey(id))

	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, err, "update task %s", id)
	}
	if txErr != nil {
		return nil, txErr
	}
	return result, nil
}

// PendingCandidates loads every PENDING task id for queueID, sorts by
// (priority DESC, created_at ASC, id ASC), and returns the first limit.
func (s *Store) PendingCandidates(ctx context.Context, queueID string, limit int) ([]*domain.Task, error) {
	ids, err := s.rdb.SMembers(ctx, queueTasksStatusKey(queueID, string(domain.TaskPending))).Result()
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, err, "list pending candidates")
	}
	tasks, err := s.loadTasks(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Priority != tasks[j].Priority {
			return tasks[i].Priority > tasks[j].Priority
		}
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

// RunningTasks returns every RUNNING task across all queues, for the
// reaper.
func (s *Store) RunningTasks(ctx context.Context) ([]*domain.Task, error) {
	ids, err := s.rdb.SMembers(ctx, runningTasksKey).Result()
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, err, "list running tasks")
	}
	return s.loadTasks(ctx, ids)
}

func (s *Store) loadTasks(ctx context.Context, ids []string) ([]*domain.Task, error) {
	tasks := make([]*domain.Task, 0, len(ids))
	for _, id := range ids {
		m, err := s.rdb.HGetAll(ctx, taskKey(id)).Result()
		if err != nil {
			return nil, apperr.Wrap(apperr.Transient, err, "load task %s", id)
		}
		if task := hashToTask(m); task != nil {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

// ListTasks returns a filtered, cursor-paginated page of a queue's tasks.
func (s *Store) ListTasks(ctx context.Context, queueID string, filter *matcher.Filter, cursor *store.Cursor, limit int) (store.Page[*domain.Task], error) {
	ids, err := s.rdb.SMembers(ctx, queueTasksKey(queueID)).Result()
	if err != nil {
		return store.Page[*domain.Task]{}, apperr.Wrap(apperr.Transient, err, "list tasks")
	}
	all, err := s.loadTasks(ctx, ids)
	if err != nil {
		return store.Page[*domain.Task]{}, err
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	filtered := make([]*domain.Task, 0, len(all))
	for _, t := range all {
		if cursor != nil {
			if t.CreatedAt.UnixNano() < cursor.CreatedAtUnixNano {
				continue
			}
			if t.CreatedAt.UnixNano() == cursor.CreatedAtUnixNano && t.ID <= cursor.ID {
				continue
			}
		}
		doc := taskFilterDoc(t)
		if filter != nil && !matcher.Match(doc, *filter) {
			continue
		}
		filtered = append(filtered, t)
	}

	page := store.Page[*domain.Task]{}
	if len(filtered) > limit {
		page.Items = filtered[:limit]
		last := page.Items[len(page.Items)-1]
		page.Next = &store.Cursor{CreatedAtUnixNano: last.CreatedAt.UnixNano(), ID: last.ID}
	} else {
		page.Items = filtered
	}
	return page, nil
}

// taskFilterDoc projects a Task into the Value document shape the matcher
// evaluates filters against: top-level args/metadata fields plus a few
// scalar fields admins commonly filter ls-tasks by.
func taskFilterDoc(t *domain.Task) domain.Value {
	return domain.Object(map[string]domain.Value{
		"args":     t.Args,
		"metadata": t.Metadata,
		"status":   domain.String(string(t.Status)),
		"priority": domain.Number(float64(t.Priority)),
		"task_name": domain.String(t.TaskName),
	})
}
