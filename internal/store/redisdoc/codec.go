// Package redisdoc implements store.Store over Redis: each document is a
// hash, each collection/status index is a set, ordering is resolved by
// loading every document in the relevant set and sorting in process, and
// compare-and-swap is implemented with Redis WATCH/MULTI transactions
// keyed on a document's etag field.
package redisdoc

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/labtasker/labtasker/internal/domain"
)

func encodeValue(v domain.Value) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeValue(s string) domain.Value {
	if s == "" {
		return domain.Null()
	}
	var v domain.Value
	_ = json.Unmarshal([]byte(s), &v)
	return v
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func encodeTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return encodeTime(*t)
}

func decodeTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := decodeTime(s)
	return &t
}

func encodeIntPtr(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

func decodeIntPtr(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func atoi64(s string, def int64) int64 {
	if s == "" {
		return def
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func queueToHash(q *domain.Queue) map[string]any {
	return map[string]any{
		"id":            q.ID,
		"name":          q.Name,
		"password_hash": q.PasswordHash,
		"metadata":      encodeValue(domain.Object(q.Metadata)),
		"created_at":    encodeTime(q.CreatedAt),
		"last_modified": encodeTime(q.LastModified),
		"etag":          strconv.FormatInt(q.ETag, 10),
	}
}

func hashToQueue(m map[string]string) *domain.Queue {
	if len(m) == 0 {
		return nil
	}
	meta, _ := decodeValue(m["metadata"]).Object()
	return &domain.Queue{
		ID:           m["id"],
		Name:         m["name"],
		PasswordHash: m["password_hash"],
		Metadata:     meta,
		CreatedAt:    decodeTime(m["created_at"]),
		LastModified: decodeTime(m["last_modified"]),
		ETag:         atoi64(m["etag"], 0),
	}
}

func taskToHash(t *domain.Task) map[string]any {
	return map[string]any{
		"id":                t.ID,
		"queue_id":          t.QueueID,
		"task_name":         t.TaskName,
		"args":              encodeValue(t.Args),
		"metadata":          encodeValue(t.Metadata),
		"cmd":               encodeValue(t.Cmd),
		"heartbeat_timeout": strconv.Itoa(t.HeartbeatTimeout),
		"task_timeout":      encodeIntPtr(t.TaskTimeout),
		"max_retries":       strconv.Itoa(t.MaxRetries),
		"priority":          strconv.Itoa(t.Priority),
		"status":            string(t.Status),
		"retries":           strconv.Itoa(t.Retries),
		"worker_id":         t.WorkerID,
		"last_heartbeat":    encodeTimePtr(t.LastHeartbeat),
		"start_time":        encodeTimePtr(t.StartTime),
		"summary":           encodeValue(t.Summary),
		"created_at":        encodeTime(t.CreatedAt),
		"last_modified":     encodeTime(t.LastModified),
		"etag":              strconv.FormatInt(t.ETag, 10),
	}
}

func hashToTask(m map[string]string) *domain.Task {
	if len(m) == 0 {
		return nil
	}
	return &domain.Task{
		ID:               m["id"],
		QueueID:          m["queue_id"],
		TaskName:         m["task_name"],
		Args:             decodeValue(m["args"]),
		Metadata:         decodeValue(m["metadata"]),
		Cmd:              decodeValue(m["cmd"]),
		HeartbeatTimeout: atoi(m["heartbeat_timeout"], domain.DefaultHeartbeatTimeout),
		TaskTimeout:      decodeIntPtr(m["task_timeout"]),
		MaxRetries:       atoi(m["max_retries"], domain.DefaultTaskMaxRetries),
		Priority:         atoi(m["priority"], domain.DefaultPriority),
		Status:           domain.TaskStatus(m["status"]),
		Retries:          atoi(m["retries"], 0),
		WorkerID:         m["worker_id"],
		LastHeartbeat:    decodeTimePtr(m["last_heartbeat"]),
		StartTime:        decodeTimePtr(m["start_time"]),
		Summary:          decodeValue(m["summary"]),
		CreatedAt:        decodeTime(m["created_at"]),
		LastModified:     decodeTime(m["last_modified"]),
		ETag:             atoi64(m["etag"], 0),
	}
}

func workerToHash(w *domain.Worker) map[string]any {
	return map[string]any{
		"id":            w.ID,
		"queue_id":      w.QueueID,
		"worker_name":   w.WorkerName,
		"metadata":      encodeValue(w.Metadata),
		"max_retries":   strconv.Itoa(w.MaxRetries),
		"status":        string(w.Status),
		"retries":       strconv.Itoa(w.Retries),
		"created_at":    encodeTime(w.CreatedAt),
		"last_modified": encodeTime(w.LastModified),
		"etag":          strconv.FormatInt(w.ETag, 10),
	}
}

func hashToWorker(m map[string]string) *domain.Worker {
	if len(m) == 0 {
		return nil
	}
	return &domain.Worker{
		ID:           m["id"],
		QueueID:      m["queue_id"],
		WorkerName:   m["worker_name"],
		Metadata:     decodeValue(m["metadata"]),
		MaxRetries:   atoi(m["max_retries"], domain.DefaultWorkerMaxRetries),
		Status:       domain.WorkerStatus(m["status"]),
		Retries:      atoi(m["retries"], 0),
		CreatedAt:    decodeTime(m["created_at"]),
		LastModified: decodeTime(m["last_modified"]),
		ETag:         atoi64(m["etag"], 0),
	}
}
