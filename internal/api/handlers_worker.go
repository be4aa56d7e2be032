package api

import (
	"net/http"
	"strconv"

	"github.com/labtasker/labtasker/internal/admin"
	"github.com/labtasker/labtasker/internal/apperr"
)

// handleRegisterWorker implements register-worker.
func (s *Server) handleRegisterWorker(w http.ResponseWriter, r *http.Request) {
	q := queueFromCtx(r)
	var req registerWorkerReq
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	worker, err := s.admin.RegisterWorker(r.Context(), q.Name, admin.RegisterWorkerParams{
		WorkerName: req.WorkerName,
		Metadata:   req.Metadata,
		MaxRetries: req.MaxRetries,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkerResp(worker))
}

// handleGetWorker implements get-worker.
func (s *Server) handleGetWorker(w http.ResponseWriter, r *http.Request) {
	workerID := pathParam(r, "worker_id")
	worker, err := s.admin.GetWorker(r.Context(), workerID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkerResp(worker))
}

// handleUpdateWorker implements update-worker.
func (s *Server) handleUpdateWorker(w http.ResponseWriter, r *http.Request) {
	workerID := pathParam(r, "worker_id")
	var req updateWorkerReq
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	worker, err := s.admin.UpdateWorker(r.Context(), workerID, adminWorkerUpdate(req))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkerResp(worker))
}

// handleDeleteWorker implements delete-worker. cascade_update defaults to
// true (RUNNING tasks leased to this worker return to PENDING).
func (s *Server) handleDeleteWorker(w http.ResponseWriter, r *http.Request) {
	workerID := pathParam(r, "worker_id")
	cascadeUpdate := true
	if v := r.URL.Query().Get("cascade_update"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeErr(w, apperr.New(apperr.InvalidArgument, "cascade_update must be a boolean"))
			return
		}
		cascadeUpdate = parsed
	}
	if err := s.admin.DeleteWorker(r.Context(), workerID, cascadeUpdate); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w)
}

// handleListWorkers implements ls-workers.
func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
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

	page, err := s.admin.ListWorkers(r.Context(), q.Name, filter, cursorFromDTO(cursor), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := workerPageResp{Next: cursorToDTO(page.Next)}
	for _, worker := range page.Items {
		resp.Items = append(resp.Items, toWorkerResp(worker))
	}
	writeJSON(w, http.StatusOK, resp)
}
