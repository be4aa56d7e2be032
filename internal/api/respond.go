package api

import (
	"encoding/json"
	"net/http"

	"github.com/labtasker/labtasker/internal/apperr"
)

// statusFor maps an apperr.Kind to its HTTP status code. This table is the
// only place apperr.Kind is translated to transport semantics — the
// engine and admin layers stay HTTP-agnostic.
func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.AlreadyExists:
		return http.StatusConflict
	case apperr.InvalidArgument:
		return http.StatusBadRequest
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.WorkerInactive:
		return http.StatusConflict
	case apperr.NotOwned:
		return http.StatusForbidden
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.Transient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	k := apperr.KindOf(err)
	status := http.StatusInternalServerError
	if k != "" {
		status = statusFor(k)
	}
	writeJSON(w, status, errResp{Error: err.Error(), Kind: string(k)})
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, okResp{OK: true})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.InvalidArgument, err, "decode request body")
	}
	return nil
}
