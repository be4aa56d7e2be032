package api

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// chainMiddleware composes h with each middleware in order. mw nearest
// the handler runs first.
func chainMiddleware(h http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// recoverHandler, requestIDHandler, realIPHandler and loggerHandler wrap
// chi/v5/middleware's standard building blocks under names that read
// naturally in chainMiddleware's call site.
func recoverHandler(next http.Handler) http.Handler {
	return middleware.Recoverer(next)
}

func requestIDHandler(next http.Handler) http.Handler {
	return middleware.RequestID(next)
}

func realIPHandler(next http.Handler) http.Handler {
	return middleware.RealIP(next)
}

func loggerHandler(next http.Handler) http.Handler {
	return middleware.Logger(next)
}

// corsHandler sets permissive CORS headers for the wire protocol's JSON
// endpoints.
func corsHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
