package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

const healthTimeout = 2 * time.Second

// healthChecker reports whether a backing dependency is reachable.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// newRouter mounts the websocket transport and the health endpoint.
// health may be nil when nothing external backs the store.
func newRouter(ws http.Handler, health healthChecker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status, code := "ok", http.StatusOK
		if health != nil {
			ctx, cancel := context.WithTimeout(req.Context(), healthTimeout)
			defer cancel()
			if err := health.HealthCheck(ctx); err != nil {
				log.Warn().Err(err).Msg("Health check failed")
				status, code = "unavailable", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
	r.Handle("/ws", ws)
	return r
}
