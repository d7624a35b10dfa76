// Package server provides the HTTP REST API for the synthesis service.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/quillview/litsynth/internal/database"
	"github.com/quillview/litsynth/internal/repository"
	litemporal "github.com/quillview/litsynth/internal/temporal"
)

// WorkflowClient is the subset of workflow operations the server needs.
// Satisfied by *temporal.SynthesisWorkflowClient; narrowed for testing.
type WorkflowClient interface {
	StartSynthesisWorkflow(ctx context.Context, workflowFunc interface{}, input litemporal.SynthesisWorkflowInput) (workflowID, runID string, err error)
	CancelWorkflow(ctx context.Context, workflowID, runID string) error
	QueryWorkflow(ctx context.Context, workflowID, runID, queryType string, result interface{}, args ...interface{}) error
	Health(ctx context.Context) error
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// MetricsPath exposes the Prometheus endpoint when non-empty.
	MetricsPath string
}

// Server is the HTTP REST API server.
type Server struct {
	router         chi.Router
	httpServer     *http.Server
	workflowClient WorkflowClient
	workflowFunc   interface{}
	runRepo        repository.RunRepository
	db             *database.DB
	validate       *validator.Validate
	registry       prometheus.Gatherer
	logger         zerolog.Logger
}

// NewServer creates the HTTP server with all dependencies. workflowFunc is
// the Temporal workflow function registered on the worker (e.g.
// workflows.SynthesisWorkflow).
func NewServer(
	cfg Config,
	workflowClient WorkflowClient,
	workflowFunc interface{},
	runRepo repository.RunRepository,
	db *database.DB,
	registry prometheus.Gatherer,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		workflowClient: workflowClient,
		workflowFunc:   workflowFunc,
		runRepo:        runRepo,
		db:             db,
		validate:       validator.New(),
		registry:       registry,
		logger:         logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter(cfg.MetricsPath)

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter(metricsPath string) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogMiddleware(s.logger))

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	if metricsPath != "" && s.registry != nil {
		r.Handle(metricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", s.startRun)
		r.Get("/runs", s.listRuns)
		r.Get("/runs/{runID}", s.getRun)
		r.Delete("/runs/{runID}", s.cancelRun)
		r.Get("/runs/{runID}/progress", s.getRunProgress)
	})

	return r
}

// Router returns the server's handler for testing.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness including Temporal connectivity.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}

	if err := s.workflowClient.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": "healthy",
			"temporal": "unhealthy",
			"error":    err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
		"temporal": "healthy",
	})
}
