package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/shotprogress/internal/hooks"
	"github.com/JakeFAU/shotprogress/internal/metadata"
	"github.com/JakeFAU/shotprogress/internal/metrics"
	"github.com/JakeFAU/shotprogress/internal/progress"
)

const requestTimeout = 30 * time.Second

// SnapshotSource exposes the snapshot currently presented.
type SnapshotSource interface {
	Latest() progress.Snapshot
}

// Firer dispatches host lifecycle events to registered callbacks.
type Firer interface {
	Fire(ctx context.Context, evt hooks.Type, handle string) []hooks.Result
}

// WorkItemRegistry stores run counters for handles.
type WorkItemRegistry interface {
	Set(handle string, runs metadata.Runs) error
}

// Deps bundles the collaborators served over HTTP. Every field is optional;
// routes whose collaborator is missing respond 404 or 503.
type Deps struct {
	Snapshots SnapshotSource
	Hooks     Firer
	WorkItems WorkItemRegistry
	Gatherer  prometheus.Gatherer
	Metrics   *metrics.Metrics
	Ready     func() error
}

// Server wires HTTP handlers to the progress plugin and its collaborators.
type Server struct {
	router chi.Router
	deps   Deps
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{deps: deps, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(deps.Metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/progress", s.getProgress)
		r.Route("/work", func(r chi.Router) {
			r.Post("/starting", s.fire(hooks.WorkStarting))
			r.Post("/ending", s.fire(hooks.WorkEnding))
		})
		r.Put("/work-items", s.putWorkItem)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(); err != nil {
			s.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
