package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const opsShutdownTimeout = 5 * time.Second

// Handler serves /healthz and /metrics.
func (r *Runner) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", r.healthHandler)
	router.Method(http.MethodGet, "/metrics", r.metrics.Handler())
	return router
}

func (r *Runner) healthHandler(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if last := r.LastRun(); !last.IsZero() {
		body["last_run"] = last.Format(time.RFC3339)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// serveOps starts the ops server in the background. The returned func shuts it down.
func (r *Runner) serveOps(ctx context.Context, addr string) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		r.log.InfoObj("ops server starting", "ops_server", map[string]any{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.ErrorObj("ops server failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.log.ErrorObj("ops server shutdown failed", "error", err)
		}
	}
}
