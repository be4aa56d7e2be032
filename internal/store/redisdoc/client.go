package redisdoc

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Config is the Redis connection configuration for the document store.
// Collections are addressed by key prefix, not config, so this carries
// nothing beyond the connection itself.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store is the Redis-backed store.Store implementation.
type Store struct {
	cfg Config
	rdb *redis.Client
}

// New builds a Store from cfg.
func New(cfg Config) *Store {
	log.Info().Msgf("connecting to redis at %s", cfg.Addr)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Store{cfg: cfg, rdb: rdb}
}

// NewFromClient wraps an already-constructed *redis.Client, used by tests
// against miniredis.
func NewFromClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Connect verifies connectivity.
func (s *Store) Connect(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redisdoc: redis connection failed: %w", err)
	}
	log.Ctx(ctx).Info().Msg("connected to redis")
	return nil
}

// Ping implements store.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// key helpers — the document/index layout of the store.

func queueKey(id string) string       { return "queue:" + id }
func queueNameKey(name string) string { return "idx:queue:name:" + name }

func taskKey(id string) string { return "task:" + id }

// queueTasksKey indexes every task id belonging to a queue, for cascade
// delete and ls-tasks.
func queueTasksKey(queueID string) string { return "idx:queue:" + queueID + ":tasks" }

// queueTasksStatusKey indexes task ids by (queue, status), maintained by
// every status transition so PendingCandidates and the reaper's
// RunningTasks scan don't need to touch unrelated tasks.
func queueTasksStatusKey(queueID, status string) string {
	return "idx:queue:" + queueID + ":tasks:status:" + status
}

// runningTasksKey indexes RUNNING task ids across all queues, for the
// reaper sweep.
const runningTasksKey = "idx:tasks:status:RUNNING"

func workerKey(id string) string { return "worker:" + id }

func queueWorkersKey(queueID string) string { return "idx:queue:" + queueID + ":workers" }

// allQueuesKey indexes every queue id, currently unused beyond admin
// bookkeeping but kept for future ls-queues support.
const allQueuesKey = "idx:queues"
