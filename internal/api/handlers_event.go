package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labtasker/labtasker/internal/apperr"
	"github.com/labtasker/labtasker/internal/domain"
	"github.com/labtasker/labtasker/internal/eventbus"
)

const defaultNextEventTimeout = 30 * time.Second

// handleSubscribeEvents implements subscribe-events.
func (s *Server) handleSubscribeEvents(w http.ResponseWriter, r *http.Request) {
	q := queueFromCtx(r)
	var req subscribeEventsReq
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	handle := s.bus.Subscribe(eventbus.Predicate{
		QueueID: q.ID,
		Entity:  domain.EntityKind(req.Entity),
		Status:  req.Status,
	})
	writeJSON(w, http.StatusCreated, subscribeEventsResp{Handle: handle})
}

// handleNextEvent implements next-event's long-poll contract.
func (s *Server) handleNextEvent(w http.ResponseWriter, r *http.Request) {
	handleStr := r.URL.Query().Get("handle")
	handle, err := strconv.ParseUint(handleStr, 10, 64)
	if err != nil {
		writeErr(w, apperr.New(apperr.InvalidArgument, "handle must be a positive integer"))
		return
	}
	timeout := defaultNextEventTimeout
	if v := r.URL.Query().Get("timeout_ms"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			writeErr(w, apperr.New(apperr.InvalidArgument, "timeout_ms must be a non-negative integer"))
			return
		}
		timeout = time.Duration(ms) * time.Millisecond
	}

	e, ok := s.bus.Next(r.Context(), handle, timeout)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, toEventResp(e))
}

// handleUnsubscribeEvents removes a long-poll subscription.
func (s *Server) handleUnsubscribeEvents(w http.ResponseWriter, r *http.Request) {
	handleStr := r.URL.Query().Get("handle")
	handle, err := strconv.ParseUint(handleStr, 10, 64)
	if err != nil {
		writeErr(w, apperr.New(apperr.InvalidArgument, "handle must be a positive integer"))
		return
	}
	s.bus.Unsubscribe(handle)
	writeOK(w)
}
