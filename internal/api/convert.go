package api

import (
	"encoding/json"

	"github.com/labtasker/labtasker/internal/admin"
	"github.com/labtasker/labtasker/internal/apperr"
	"github.com/labtasker/labtasker/internal/domain"
	"github.com/labtasker/labtasker/internal/matcher"
	"github.com/labtasker/labtasker/internal/store"
)

// parseFilterQuery decodes a JSON-encoded matcher.Filter tree passed as a
// single query-string value, used by ls-tasks/ls-workers. An empty string
// means "no filter".
func parseFilterQuery(raw string) (*matcher.Filter, error) {
	if raw == "" {
		return nil, nil
	}
	var f matcher.Filter
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, apperr.Wrap(apperr.InvalidArgument, err, "decode filter query parameter")
	}
	return &f, nil
}

func adminQueueUpdate(req updateQueueReq) admin.QueueUpdate {
	return admin.QueueUpdate{
		NewName:        req.NewName,
		NewPassword:    req.NewPassword,
		MetadataUpdate: req.Metadata,
	}
}

func adminTaskUpdate(req updateTaskReq) admin.TaskUpdate {
	u := admin.TaskUpdate{
		Priority:         req.Priority,
		MaxRetries:       req.MaxRetries,
		HeartbeatTimeout: req.HeartbeatTimeout,
		HasTaskTimeout:   req.HasTaskTimeout,
		TaskTimeout:      req.TaskTimeout,
		TaskName:         req.TaskName,
	}
	if req.HasArgs {
		u.Args, u.HasArgs = req.Args, true
	}
	if req.HasMetadata {
		u.Metadata, u.HasMetadata = domain.Object(req.Metadata), true
	}
	if req.HasCmd {
		u.Cmd, u.HasCmd = req.Cmd, true
	}
	return u
}

func adminWorkerUpdate(req updateWorkerReq) admin.WorkerUpdate {
	return admin.WorkerUpdate{
		MetadataUpdate: req.Metadata,
		MaxRetries:     req.MaxRetries,
		Resume:         req.Resume,
	}
}

func cursorFromDTO(d *cursorDTO) *store.Cursor {
	if d == nil {
		return nil
	}
	return &store.Cursor{CreatedAtUnixNano: d.CreatedAtUnixNano, ID: d.ID}
}

func cursorToDTO(c *store.Cursor) *cursorDTO {
	if c == nil {
		return nil
	}
	return &cursorDTO{CreatedAtUnixNano: c.CreatedAtUnixNano, ID: c.ID}
}
