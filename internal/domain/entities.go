package domain

import "time"

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "PENDING"
	TaskRunning   TaskStatus = "RUNNING"
	TaskSuccess   TaskStatus = "SUCCESS"
	TaskFailed    TaskStatus = "FAILED"
	TaskCancelled TaskStatus = "CANCELLED"
)

// Terminal reports whether no further engine-driven transition leaves this
// status. FAILED is only terminal relative to a task's retries/max_retries,
// so callers must check Task.Terminal() instead for FAILED.
func (s TaskStatus) Terminal() bool {
	return s == TaskSuccess || s == TaskCancelled
}

// WorkerStatus is the lifecycle state of a Worker.
type WorkerStatus string

const (
	WorkerActive    WorkerStatus = "ACTIVE"
	WorkerSuspended WorkerStatus = "SUSPENDED"
	WorkerCrashed   WorkerStatus = "CRASHED"
)

// DefaultPriority is the default task priority when a submission omits one.
const DefaultPriority = 10

// DefaultHeartbeatTimeout is the default lease liveness window in seconds,
// applied to a task submitted without one. Queues carry no
// heartbeat_timeout of their own.
const DefaultHeartbeatTimeout = 60

// DefaultWorkerMaxRetries is the default consecutive-failure bound for a
// worker.
const DefaultWorkerMaxRetries = 3

// DefaultTaskMaxRetries is the default max_retries for a submitted task.
const DefaultTaskMaxRetries = 3

// Queue scopes a set of tasks and workers behind a shared secret.
type Queue struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	PasswordHash string           `json:"-"`
	Metadata     map[string]Value `json:"metadata"`
	CreatedAt    time.Time        `json:"created_at"`
	LastModified time.Time        `json:"last_modified"`
	ETag         int64            `json:"etag"`
}

// Task is one experiment parameter bundle and its lifecycle state.
type Task struct {
	ID               string           `json:"id"`
	QueueID          string           `json:"queue_id"`
	TaskName         string           `json:"task_name,omitempty"`
	Args             Value            `json:"args"`
	Metadata         Value            `json:"metadata"`
	Cmd              Value            `json:"cmd,omitempty"`
	HeartbeatTimeout int              `json:"heartbeat_timeout"`
	TaskTimeout      *int             `json:"task_timeout,omitempty"`
	MaxRetries       int              `json:"max_retries"`
	Priority         int              `json:"priority"`
	Status           TaskStatus       `json:"status"`
	Retries          int              `json:"retries"`
	WorkerID         string           `json:"worker_id,omitempty"`
	LastHeartbeat    *time.Time       `json:"last_heartbeat,omitempty"`
	StartTime        *time.Time       `json:"start_time,omitempty"`
	Summary          Value            `json:"summary"`
	CreatedAt        time.Time        `json:"created_at"`
	LastModified     time.Time        `json:"last_modified"`
	ETag             int64            `json:"etag"`
}

// TerminalFailed reports whether a FAILED task is terminal, i.e. has
// exhausted its retries.
func (t *Task) TerminalFailed() bool {
	return t.Status == TaskFailed && t.Retries >= t.MaxRetries
}

// Terminal reports whether the task cannot be further transitioned by the
// engine (SUCCESS, CANCELLED, or exhausted FAILED).
func (t *Task) Terminal() bool {
	return t.Status.Terminal() || t.TerminalFailed()
}

// Worker is a long-running process that fetches and executes tasks.
type Worker struct {
	ID           string       `json:"id"`
	QueueID      string       `json:"queue_id"`
	WorkerName   string       `json:"worker_name,omitempty"`
	Metadata     Value        `json:"metadata"`
	MaxRetries   int          `json:"max_retries"`
	Status       WorkerStatus `json:"status"`
	Retries      int          `json:"retries"`
	CreatedAt    time.Time    `json:"created_at"`
	LastModified time.Time    `json:"last_modified"`
	ETag         int64        `json:"etag"`
}

// EntityKind names the entity type an Event concerns.
type EntityKind string

const (
	EntityTask   EntityKind = "task"
	EntityWorker EntityKind = "worker"
	EntityQueue  EntityKind = "queue"
)

// OverflowStatus is the sentinel new_status value used when a subscriber's
// buffer drops events.
const OverflowStatus = "OVERFLOW"

// Event is an ephemeral state-transition notification, not persisted.
type Event struct {
	ID        uint64     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	QueueID   string     `json:"queue_id"`
	Entity    EntityKind `json:"entity"`
	EntityID  string     `json:"entity_id"`
	OldStatus string     `json:"old_status"`
	NewStatus string     `json:"new_status"`
	Metadata  Value      `json:"metadata"`
}
