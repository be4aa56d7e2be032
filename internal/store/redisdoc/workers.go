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

// CreateWorker inserts a new worker document.
func (s *Store) CreateWorker(ctx context.Context, w *domain.Worker) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, workerKey(w.ID), workerToHash(w))
		pipe.SAdd(ctx, queueWorkersKey(w.QueueID), w.ID)
		return nil
	})
	if err != nil {
		return apperr.Wrap(apperr.Transient, err, "create worker %s", w.ID)
	}
	return nil
}

// GetWorker loads a worker by id.
func (s *Store) GetWorker(ctx context.Context, id string) (*domain.Worker, error) {
	m, err := s.rdb.HGetAll(ctx, workerKey(id)).Result()
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, err, "get worker %s", id)
	}
	w := hashToWorker(m)
	if w == nil {
		return nil, apperr.New(apperr.NotFound, "worker %s not found", id)
	}
	return w, nil
}

// DeleteWorker removes a worker document; if cascadeUpdate, any tasks
// currently leased to it are returned to PENDING with their lease fields
// (worker_id, start_time, last_heartbeat) cleared.
func (s *Store) DeleteWorker(ctx context.Context, id string, cascadeUpdate bool) error {
	w, err := s.GetWorker(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, workerKey(id))
		pipe.SRem(ctx, queueWorkersKey(w.QueueID), id)
		return nil
	})
	if err != nil {
		return apperr.Wrap(apperr.Transient, err, "delete worker %s", id)
	}
	if cascadeUpdate {
		ids, err := s.rdb.SMembers(ctx, queueTasksStatusKey(w.QueueID, string(domain.TaskRunning))).Result()
		if err != nil {
			return apperr.Wrap(apperr.Transient, err, "cascade clear worker on tasks")
		}
		for _, taskID := range ids {
			task, err := s.GetTask(ctx, taskID)
			if err != nil || task.WorkerID != id {
				continue
			}
			_, _ = s.UpdateTaskCAS(ctx, taskID, task.ETag, func(t *domain.Task) {
				t.Status = domain.TaskPending
				t.WorkerID = ""
				t.StartTime = nil
				t.LastHeartbeat = nil
			})
		}
	}
	return nil
}

// UpdateWorkerCAS implements store.Store's optimistic-concurrency update
// for workers, mirroring UpdateTaskCAS.
func (s *Store) UpdateWorkerCAS(ctx context.Context, id string, expectedEtag int64, mutate func(*domain.Worker)) (*domain.Worker, error) {
	var result *domain.Worker
	var txErr error

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		m, err := tx.HGetAll(ctx, workerKey(id)).Result()
		if err != nil {
			return err
		}
		w := hashToWorker(m)
		if w == nil {
			txErr = apperr.New(apperr.NotFound, "worker %s not found", id)
			return nil
		}
		if w.ETag != expectedEtag {
			txErr = apperr.New(apperr.Conflict, "worker %s etag mismatch", id)
			return nil
		}
		mutate(w)
		w.ETag++

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, workerKey(id), workerToHash(w))
			return nil
		})
		if err != nil {
			return err
		}
		result = w
		return nil
	}, workerKey(id))

	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, err, "update worker %s", id)
	}
	if txErr != nil {
		return nil, txErr
	}
	return result, nil
}

// ListWorkers returns a filtered, cursor-paginated page of a queue's
// workers.
func (s *Store) ListWorkers(ctx context.Context, queueID string, filter *matcher.Filter, cursor *store.Cursor, limit int) (store.Page[*domain.Worker], error) {
	ids, err := s.rdb.SMembers(ctx, queueWorkersKey(queueID)).Result()
	if err != nil {
		return store.Page[*domain.Worker]{}, apperr.Wrap(apperr.Transient, err, "list workers")
	}
	all := make([]*domain.Worker, 0, len(ids))
	for _, id := range ids {
		m, err := s.rdb.HGetAll(ctx, workerKey(id)).Result()
		if err != nil {
			return store.Page[*domain.Worker]{}, apperr.Wrap(apperr.Transient, err, "load worker %s", id)
		}
		if w := hashToWorker(m); w != nil {
			all = append(all, w)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	filtered := make([]*domain.Worker, 0, len(all))
	for _, w := range all {
		if cursor != nil {
			if w.CreatedAt.UnixNano() < cursor.CreatedAtUnixNano {
				continue
			}
			if w.CreatedAt.UnixNano() == cursor.CreatedAtUnixNano && w.ID <= cursor.ID {
				continue
			}
		}
		doc := workerFilterDoc(w)
		if filter != nil && !matcher.Match(doc, *filter) {
			continue
		}
		filtered = append(filtered, w)
	}

	page := store.Page[*domain.Worker]{}
	if len(filtered) > limit {
		page.Items = filtered[:limit]
		last := page.Items[len(page.Items)-1]
		page.Next = &store.Cursor{CreatedAtUnixNano: last.CreatedAt.UnixNano(), ID: last.ID}
	} else {
		page.Items = filtered
	}
	return page, nil
}

func workerFilterDoc(w *domain.Worker) domain.Value {
	return domain.Object(map[string]domain.Value{
		"metadata":    w.Metadata,
		"status":      domain.String(string(w.Status)),
		"worker_name": domain.String(w.WorkerName),
	})
}
