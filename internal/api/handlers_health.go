package api

import "net/http"

// handleHealth reports process liveness plus store connectivity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	overall := "ok"
	if err := s.store.Ping(r.Context()); err != nil {
		status = "unhealthy"
		overall = "degraded"
	}
	writeJSON(w, http.StatusOK, healthResp{Status: overall, Database: status})
}
