package api

import (
	"encoding/json"
	"time"

	"github.com/labtasker/labtasker/internal/domain"
	"github.com/labtasker/labtasker/internal/matcher"
)

// createQueueReq is create-queue's request body.
type createQueueReq struct {
	QueueName string                  `json:"queue_name"`
	Password  string                  `json:"password"`
	Metadata  map[string]domain.Value `json:"metadata,omitempty"`
}

type queueResp struct {
	ID           string                  `json:"queue_id"`
	Name         string                  `json:"queue_name"`
	Metadata     map[string]domain.Value `json:"metadata"`
	CreatedAt    time.Time               `json:"created_at"`
	LastModified time.Time               `json:"last_modified"`
}

func toQueueResp(q *domain.Queue) queueResp {
	return queueResp{
		ID:           q.ID,
		Name:         q.Name,
		Metadata:     q.Metadata,
		CreatedAt:    q.CreatedAt,
		LastModified: q.LastModified,
	}
}

// updateQueueReq is update-queue's request body.
type updateQueueReq struct {
	NewName     *string                 `json:"new_queue_name,omitempty"`
	NewPassword *string                 `json:"new_password,omitempty"`
	Metadata    map[string]domain.Value `json:"metadata,omitempty"`
}

// submitTaskReq is submit-task's request body.
type submitTaskReq struct {
	TaskName         string       `json:"task_name,omitempty"`
	Args             domain.Value `json:"args"`
	Metadata         domain.Value `json:"metadata,omitempty"`
	Cmd              domain.Value `json:"cmd,omitempty"`
	HeartbeatTimeout *int         `json:"heartbeat_timeout,omitempty"`
	TaskTimeout      *int         `json:"task_timeout,omitempty"`
	MaxRetries       *int         `json:"max_retries,omitempty"`
	Priority         *int         `json:"priority,omitempty"`
}

type taskResp struct {
	ID               string       `json:"task_id"`
	QueueID          string       `json:"queue_id"`
	TaskName         string       `json:"task_name,omitempty"`
	Args             domain.Value `json:"args"`
	Metadata         domain.Value `json:"metadata"`
	Cmd              domain.Value `json:"cmd,omitempty"`
	HeartbeatTimeout int          `json:"heartbeat_timeout"`
	TaskTimeout      *int         `json:"task_timeout,omitempty"`
	MaxRetries       int          `json:"max_retries"`
	Priority         int          `json:"priority"`
	Status           string       `json:"status"`
	Retries          int          `json:"retries"`
	WorkerID         string       `json:"worker_id,omitempty"`
	LastHeartbeat    *time.Time   `json:"last_heartbeat,omitempty"`
	StartTime        *time.Time   `json:"start_time,omitempty"`
	Summary          domain.Value `json:"summary"`
	CreatedAt        time.Time    `json:"created_at"`
	LastModified     time.Time    `json:"last_modified"`
}

func toTaskResp(t *domain.Task) taskResp {
	return taskResp{
		ID:               t.ID,
		QueueID:          t.QueueID,
		TaskName:         t.TaskName,
		Args:             t.Args,
		Metadata:         t.Metadata,
		Cmd:              t.Cmd,
		HeartbeatTimeout: t.HeartbeatTimeout,
		TaskTimeout:      t.TaskTimeout,
		MaxRetries:       t.MaxRetries,
		Priority:         t.Priority,
		Status:           string(t.Status),
		Retries:          t.Retries,
		WorkerID:         t.WorkerID,
		LastHeartbeat:    t.LastHeartbeat,
		StartTime:        t.StartTime,
		Summary:          t.Summary,
		CreatedAt:        t.CreatedAt,
		LastModified:     t.LastModified,
	}
}

// fetchTaskReq is fetch-task's request body.
type fetchTaskReq struct {
	WorkerID         string          `json:"worker_id"`
	RequiredFields   []string        `json:"required_fields,omitempty"`
	ExtraFilter      *matcher.Filter `json:"extra_filter,omitempty"`
	HeartbeatTimeout *int            `json:"heartbeat_timeout,omitempty"`
}

// reportTaskReq is report-task's request body.
type reportTaskReq struct {
	WorkerID string       `json:"worker_id"`
	Status   string       `json:"status"`
	Summary  domain.Value `json:"summary,omitempty"`
}

// heartbeatReq is refresh-heartbeat's request body.
type heartbeatReq struct {
	WorkerID string `json:"worker_id"`
}

// updateTaskReq is update-task's request body. HasArgs/HasMetadata/HasCmd
// distinguish "field omitted" from "field present", since domain.Value
// has no natural zero-value-means-absent encoding.
type updateTaskReq struct {
	Args             domain.Value
	HasArgs          bool
	Metadata         map[string]domain.Value
	HasMetadata      bool
	Priority         *int
	MaxRetries       *int
	HeartbeatTimeout *int
	TaskTimeout      *int
	HasTaskTimeout   bool
	Cmd              domain.Value
	HasCmd           bool
	TaskName         *string
}

// wireUpdateTaskReq mirrors updateTaskReq's JSON shape for decoding.
type wireUpdateTaskReq struct {
	Args             *domain.Value           `json:"args,omitempty"`
	Metadata         map[string]domain.Value `json:"metadata,omitempty"`
	Priority         *int                    `json:"priority,omitempty"`
	MaxRetries       *int                    `json:"max_retries,omitempty"`
	HeartbeatTimeout *int                    `json:"heartbeat_timeout,omitempty"`
	TaskTimeout      *int                    `json:"task_timeout,omitempty"`
	ClearTaskTimeout bool                    `json:"clear_task_timeout,omitempty"`
	Cmd              *domain.Value           `json:"cmd,omitempty"`
	TaskName         *string                 `json:"task_name,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler so presence/absence of each
// optional field can be distinguished from an explicit null/zero value.
func (u *updateTaskReq) UnmarshalJSON(data []byte) error {
	var w wireUpdateTaskReq
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	u.fromWire(w)
	return nil
}

func (u *updateTaskReq) fromWire(w wireUpdateTaskReq) {
	if w.Args != nil {
		u.Args, u.HasArgs = *w.Args, true
	}
	if w.Metadata != nil {
		u.Metadata, u.HasMetadata = w.Metadata, true
	}
	u.Priority = w.Priority
	u.MaxRetries = w.MaxRetries
	u.HeartbeatTimeout = w.HeartbeatTimeout
	if w.TaskTimeout != nil {
		u.TaskTimeout, u.HasTaskTimeout = w.TaskTimeout, true
	} else if w.ClearTaskTimeout {
		u.HasTaskTimeout = true
	}
	if w.Cmd != nil {
		u.Cmd, u.HasCmd = *w.Cmd, true
	}
	u.TaskName = w.TaskName
}

// resetTaskReq is reset-task's request body (admin.ResetTask).
type resetTaskReq struct {
	Settings matcher.Update `json:"settings"`
}

// bulkUpdateReq is update-tasks's request body.
type bulkUpdateReq struct {
	Filter *matcher.Filter `json:"filter,omitempty"`
	Update matcher.Update  `json:"update"`
}

type bulkUpdateResultItem struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error,omitempty"`
}

// listTasksReq carries ls-tasks's query parameters.
type listTasksReq struct {
	Filter   *matcher.Filter
	Cursor   *cursorDTO
	Limit    int
}

type cursorDTO struct {
	CreatedAtUnixNano int64  `json:"created_at_unix_nano"`
	ID                string `json:"id"`
}

type taskPageResp struct {
	Items []taskResp `json:"items"`
	Next  *cursorDTO `json:"next,omitempty"`
}

// registerWorkerReq is register-worker's request body.
type registerWorkerReq struct {
	WorkerName string       `json:"worker_name,omitempty"`
	Metadata   domain.Value `json:"metadata,omitempty"`
	MaxRetries *int         `json:"max_retries,omitempty"`
}

type workerResp struct {
	ID           string       `json:"worker_id"`
	QueueID      string       `json:"queue_id"`
	WorkerName   string       `json:"worker_name,omitempty"`
	Metadata     domain.Value `json:"metadata"`
	MaxRetries   int          `json:"max_retries"`
	Status       string       `json:"status"`
	Retries      int          `json:"retries"`
	CreatedAt    time.Time    `json:"created_at"`
	LastModified time.Time    `json:"last_modified"`
}

func toWorkerResp(w *domain.Worker) workerResp {
	return workerResp{
		ID:           w.ID,
		QueueID:      w.QueueID,
		WorkerName:   w.WorkerName,
		Metadata:     w.Metadata,
		MaxRetries:   w.MaxRetries,
		Status:       string(w.Status),
		Retries:      w.Retries,
		CreatedAt:    w.CreatedAt,
		LastModified: w.LastModified,
	}
}

type workerPageResp struct {
	Items []workerResp `json:"items"`
	Next  *cursorDTO   `json:"next,omitempty"`
}

// updateWorkerReq is update-worker's request body.
type updateWorkerReq struct {
	Metadata   map[string]domain.Value `json:"metadata,omitempty"`
	MaxRetries *int                    `json:"max_retries,omitempty"`
	Resume     bool                    `json:"resume,omitempty"`
}

// subscribeEventsReq is subscribe-events's request body.
type subscribeEventsReq struct {
	Entity string `json:"entity,omitempty"`
	Status string `json:"status,omitempty"`
}

type subscribeEventsResp struct {
	Handle uint64 `json:"handle"`
}

type eventResp struct {
	ID        uint64       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	QueueID   string       `json:"queue_id"`
	Entity    string       `json:"entity"`
	EntityID  string       `json:"entity_id"`
	OldStatus string       `json:"old_status"`
	NewStatus string       `json:"new_status"`
	Metadata  domain.Value `json:"metadata"`
}

func toEventResp(e domain.Event) eventResp {
	return eventResp{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		QueueID:   e.QueueID,
		Entity:    string(e.Entity),
		EntityID:  e.EntityID,
		OldStatus: e.OldStatus,
		NewStatus: e.NewStatus,
		Metadata:  e.Metadata,
	}
}

type errResp struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type healthResp struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}
