package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/labtasker/labtasker/internal/apperr"
	"github.com/labtasker/labtasker/internal/domain"
)

type ctxKey int

const queueCtxKey ctxKey = iota

// requireQueueAuth authenticates the {queue_name} path segment against its
// shared secret via HTTP Basic auth (password=the queue's password; the
// username is not checked, the queue is named by the path), and attaches
// the resolved queue to the request context for handlers.
func (s *Server) requireQueueAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queueName := chi.URLParam(r, "queue_name")
		_, password, ok := r.BasicAuth()
		if !ok {
			writeErr(w, apperr.New(apperr.Unauthorized, "missing basic auth credentials"))
			return
		}
		q, err := s.admin.Authenticate(r.Context(), queueName, password)
		if err != nil {
			writeErr(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), queueCtxKey, q)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func queueFromCtx(r *http.Request) *domain.Queue {
	q, _ := r.Context().Value(queueCtxKey).(*domain.Queue)
	return q
}
