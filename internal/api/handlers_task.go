package api

import (
	"net/http"
	"strconv"

	"github.com/labtasker/labtasker/internal/admin"
	"github.com/labtasker/labtasker/internal/apperr"
	"github.com/labtasker/labtasker/internal/engine"
)

// handleSubmitTask implements submit-task.
func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	q := queueFromCtx(r)
	var req submitTaskReq
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	t, err := s.admin.SubmitTask(r.Context(), q.Name, admin.SubmitTaskParams{
		TaskName:         req.TaskName,
		Args:             req.Args,
		Metadata:         req.Metadata,
		Cmd:              req.Cmd,
		HeartbeatTimeout: req.HeartbeatTimeout,
		TaskTimeout:      req.TaskTimeout,
		MaxRetries:       req.MaxRetries,
		Priority:         req.Priority,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskResp(t))
}

// handleFetchTask implements fetch-task. Returns a null body (200, no
// task document) when the bounded scan finds nothing — that is not an
// error.
func (s *Server) handleFetchTask(w http.ResponseWriter, r *http.Request) {
	q := queueFromCtx(r)
	var req fetchTaskReq
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	t, err := s.engine.FetchNext(r.Context(), engine.FetchRequest{
		QueueID:          q.ID,
		WorkerID:         req.WorkerID,
		RequiredFields:   req.RequiredFields,
		ExtraFilter:      req.ExtraFilter,
		HeartbeatTimeout: req.HeartbeatTimeout,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	if t == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResp(t))
}

// handleHeartbeat implements refresh-heartbeat.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	taskID := pathParam(r, "task_id")
	var req heartbeatReq
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.engine.Heartbeat(r.Context(), taskID, req.WorkerID); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w)
}

// handleReportTask implements report-task.
func (s *Server) handleReportTask(w http.ResponseWriter, r *http.Request) {
	taskID := pathParam(r, "task_id")
	var req reportTaskReq
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	outcome := engine.Outcome(req.Status)
	switch outcome {
	case engine.OutcomeSuccess, engine.OutcomeFailed, engine.OutcomeCancelled:
	default:
		writeErr(w, apperr.New(apperr.InvalidArgument, "unknown status %q", req.Status))
		return
	}
	if err := s.engine.Report(r.Context(), taskID, req.WorkerID, outcome, req.Summary); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w)
}

// handleGetTask implements get-task.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := pathParam(r, "task_id")
	t, err := s.admin.GetTask(r.Context(), taskID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResp(t))
}

// handleUpdateTask implements update-task.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID := pathParam(r, "task_id")
	var req updateTaskReq
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	t, err := s.admin.UpdateTask(r.Context(), taskID, adminTaskUpdate(req))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResp(t))
}

// handleResetTask implements the manual task-reset operation (admin.ResetTask).
func (s *Server) handleResetTask(w http.ResponseWriter, r *http.Request) {
	taskID := pathParam(r, "task_id")
	var req resetTaskReq
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	t, err := s.admin.ResetTask(r.Context(), taskID, req.Settings)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResp(t))
}

// handleCancelTask implements admin cancel.
func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	taskID := pathParam(r, "task_id")
	t, err := s.admin.CancelTask(r.Context(), taskID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResp(t))
}

// handleDeleteTask implements delete-task.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID := pathParam(r, "task_id")
	if err := s.admin.DeleteTask(r.Context(), taskID); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w)
}

// handleListTasks implements ls-tasks.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := queueFromCtx(r)
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeErr(w, apperr.New(apperr.InvalidArgument, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	var cursor *cursorDTO
	if v := r.URL.Query().Get("cursor_id"); v != "" {
		ts, err := strconv.ParseInt(r.URL.Query().Get("cursor_ts"), 10, 64)
		if err != nil {
			writeErr(w, apperr.New(apperr.InvalidArgument, "malformed cursor"))
			return
		}
		cursor = &cursorDTO{CreatedAtUnixNano: ts, ID: v}
	}
	filter, err := parseFilterQuery(r.URL.Query().Get("filter"))
	if err != nil {
		writeErr(w, err)
		return
	}

	page, err := s.admin.ListTasks(r.Context(), q.Name, filter, cursorFromDTO(cursor), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := taskPageResp{Next: cursorToDTO(page.Next)}
	for _, t := range page.Items {
		resp.Items = append(resp.Items, toTaskResp(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleBulkUpdateTasks implements update-tasks.
func (s *Server) handleBulkUpdateTasks(w http.ResponseWriter, r *http.Request) {
	q := queueFromCtx(r)
	var req bulkUpdateReq
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	results, err := s.admin.BulkUpdateTasks(r.Context(), q.Name, req.Filter, req.Update)
	if err != nil {
		writeErr(w, err)
		return
	}
	items := make([]bulkUpdateResultItem, len(results))
	for i, res := range results {
		item := bulkUpdateResultItem{TaskID: res.TaskID}
		if res.Error != nil {
			item.Error = res.Error.Error()
		}
		items[i] = item
	}
	writeJSON(w, http.StatusOK, items)
}
