package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hanpama/graphpress/internal/reqid"
)

// RouterConfig describes the endpoints mounted next to the GraphQL handler.
type RouterConfig struct {
	// AllowedOrigins enables CORS for the listed origins. Empty disables it.
	AllowedOrigins []string

	// Metrics is served at /metrics when set.
	Metrics http.Handler

	// Health reports readiness at /healthz. Nil always reports healthy.
	Health func(context.Context) error
}

// NewRouter mounts h at /graphql together with health and metrics endpoints.
func NewRouter(h http.Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", reqid.Header},
			ExposedHeaders: []string{reqid.Header},
			MaxAge:         300,
		}))
	}
	r.Handle("/graphql", h)
	r.Get("/healthz", health(cfg.Health))
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	return r
}

func health(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()}, false)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, false)
	}
}
