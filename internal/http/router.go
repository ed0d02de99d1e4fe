// Package httpapi assembles the public HTTP surface: middleware chain,
// registration routes, health and metrics.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"eventreg/internal/platform/metrics"
	"eventreg/internal/platform/middleware"
	"eventreg/pkg/platform/httputil"
	"eventreg/pkg/platform/middleware/metadata"
	"eventreg/pkg/platform/middleware/requesttime"
)

// healthTimeout bounds each dependency probe.
const healthTimeout = 2 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Registrar mounts a group of routes.
type Registrar interface {
	Register(r chi.Router)
}

// Deps are the pieces the router is built from. Metrics may be nil.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	RequestTimeout time.Duration
	Health         map[string]HealthCheck
	Routes         []Registrar
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// NewRouter wires the middleware chain and every route group.
func NewRouter(deps Deps) http.Handler {
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 45 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger, deps.Metrics))
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.LatencyMiddleware(deps.Metrics))

	r.Get("/healthz", healthHandler(deps.Health))
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(deps.RequestTimeout))
		r.Use(middleware.ContentTypeJSON)
		for _, routes := range deps.Routes {
			routes.Register(r)
		}
	})
	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}
		if len(names) > 0 {
			resp.Dependencies = make(map[string]string, len(names))
		}
		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			err := checks[name](ctx)
			cancel()
			if err != nil {
				resp.Status = "degraded"
				resp.Dependencies[name] = "down"
				continue
			}
			resp.Dependencies[name] = "up"
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}
