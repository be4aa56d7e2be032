package redisdoc

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/labtasker/labtasker/internal/apperr"
	"github.com/labtasker/labtasker/internal/domain"
)

// CreateQueue inserts a new queue, enforcing name uniqueness via SetNX on
// the name index.
func (s *Store) CreateQueue(ctx context.Context, q *domain.Queue) error {
	ok, err := s.rdb.SetNX(ctx, queueNameKey(q.Name), q.ID, 0).Result()
	if err != nil {
		return apperr.Wrap(apperr.Transient, err, "create queue %s", q.Name)
	}
	if !ok {
		return apperr.New(apperr.AlreadyExists, "queue %q already exists", q.Name)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, queueKey(q.ID), queueToHash(q))
		pipe.SAdd(ctx, allQueuesKey, q.ID)
		return nil
	})
	if err != nil {
		return apperr.Wrap(apperr.Transient, err, "create queue %s", q.Name)
	}
	return nil
}

// GetQueueByName loads a queue by its unique name.
func (s *Store) GetQueueByName(ctx context.Context, name string) (*domain.Queue, error) {
	id, err := s.rdb.Get(ctx, queueNameKey(name)).Result()
	if err == redis.Nil {
		return nil, apperr.New(apperr.NotFound, "queue %q not found", name)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, err, "get queue %s", name)
	}
	return s.GetQueueByID(ctx, id)
}

// GetQueueByID loads a queue by its opaque id.
func (s *Store) GetQueueByID(ctx context.Context, id string) (*domain.Queue, error) {
	m, err := s.rdb.HGetAll(ctx, queueKey(id)).Result()
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, err, "get queue %s", id)
	}
	q := hashToQueue(m)
	if q == nil {
		return nil, apperr.New(apperr.NotFound, "queue %s not found", id)
	}
	return q, nil
}

// UpdateQueueCAS implements store.Store's optimistic-concurrency update for
// queues. If mutate renames the queue, the name index is updated
// atomically with the document.
func (s *Store) UpdateQueueCAS(ctx context.Context, id string, expectedEtag int64, mutate func(*domain.Queue)) (*domain.Queue, error) {
	var result *domain.Queue
	var txErr error

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		m, err := tx.HGetAll(ctx, queueKey(id)).Result()
		if err != nil {
			return err
		}
		q := hashToQueue(m)
		if q == nil {
			txErr = apperr.New(apperr.NotFound, "queue %s not found", id)
			return nil
		}
		if q.ETag != expectedEtag {
			txErr = apperr.New(apperr.Conflict, "queue %s etag mismatch", id)
			return nil
		}
		oldName := q.Name
		mutate(q)
		if oldName != q.Name {
			taken, err := tx.Exists(ctx, queueNameKey(q.Name)).Result()
			if err != nil {
				return err
			}
			if taken > 0 {
				txErr = apperr.New(apperr.AlreadyExists, "queue %q already exists", q.Name)
				return nil
			}
		}
		q.ETag++

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, queueKey(id), queueToHash(q))
			if oldName != q.Name {
				pipe.Del(ctx, queueNameKey(oldName))
				pipe.SetNX(ctx, queueNameKey(q.Name), id, 0)
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = q
		return nil
	}, queueKey(id))

	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, err, "update queue %s", id)
	}
	if txErr != nil {
		return nil, txErr
	}
	return result, nil
}

// DeleteQueue removes a queue; if cascade, every task and worker belonging
// to it is removed too.
func (s *Store) DeleteQueue(ctx context.Context, id string, cascade bool) error {
	q, err := s.GetQueueByID(ctx, id)
	if err != nil {
		return err
	}
	if cascade {
		taskIDs, err := s.rdb.SMembers(ctx, queueTasksKey(id)).Result()
		if err != nil {
			return apperr.Wrap(apperr.Transient, err, "cascade delete tasks")
		}
		for _, taskID := range taskIDs {
			_ = s.DeleteTask(ctx, taskID)
		}
		workerIDs, err := s.rdb.SMembers(ctx, queueWorkersKey(id)).Result()
		if err != nil {
			return apperr.Wrap(apperr.Transient, err, "cascade delete workers")
		}
		for _, workerID := range workerIDs {
			_ = s.DeleteWorker(ctx, workerID, false)
		}
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, queueKey(id))
		pipe.Del(ctx, queueNameKey(q.Name))
		pipe.SRem(ctx, allQueuesKey, id)
		return nil
	})
	if err != nil {
		return apperr.Wrap(apperr.Transient, err, "delete queue %s", id)
	}
	return nil
}
