package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/labtasker/labtasker/internal/apperr"
)

// handleCreateQueue implements create-queue.
func (s *Server) handleCreateQueue(w http.ResponseWriter, r *http.Request) {
	var req createQueueReq
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	q, err := s.admin.CreateQueue(r.Context(), req.QueueName, req.Password, req.Metadata)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toQueueResp(q))
}

// handleGetQueue implements get-queue.
func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	q := queueFromCtx(r)
	writeJSON(w, http.StatusOK, toQueueResp(q))
}

// handleUpdateQueue implements update-queue.
func (s *Server) handleUpdateQueue(w http.ResponseWriter, r *http.Request) {
	q := queueFromCtx(r)
	var req updateQueueReq
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	updated, err := s.admin.UpdateQueue(r.Context(), q.Name, adminQueueUpdate(req))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toQueueResp(updated))
}

// handleDeleteQueue implements delete-queue. cascade defaults to true.
func (s *Server) handleDeleteQueue(w http.ResponseWriter, r *http.Request) {
	q := queueFromCtx(r)
	cascade := true
	if v := r.URL.Query().Get("cascade"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeErr(w, apperr.New(apperr.InvalidArgument, "cascade must be a boolean"))
			return
		}
		cascade = parsed
	}
	if err := s.admin.DeleteQueue(r.Context(), q.Name, cascade); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w)
}

func pathParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
