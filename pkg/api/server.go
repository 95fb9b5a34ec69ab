// Package api exposes the HTTP surface: the checker-maker process façade,
// the engine-table audit endpoints, and the detailed audit query API.
package api

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/partha/checker-maker/pkg/audit"
	"github.com/partha/checker-maker/pkg/engine"
	"github.com/partha/checker-maker/pkg/middleware"
	"github.com/partha/checker-maker/pkg/observability"
)

// Server is the HTTP API server.
type Server struct {
	router   *mux.Router
	db       *sql.DB
	driver   string
	engine   engine.Engine
	store    audit.Store
	recorder *audit.Recorder
	logger   *observability.Logger
	health   *observability.HealthChecker
}

// Options configures a Server.
type Options struct {
	DB       *sql.DB
	Driver   string
	Engine   engine.Engine
	Store    audit.Store
	Recorder *audit.Recorder
	Logger   *observability.Logger

	// Registry, when set, exposes /metrics for it and collects per-route
	// request metrics.
	Registry *prometheus.Registry

	// RateLimiter, when set, limits requests per client IP.
	RateLimiter *middleware.RateLimiter
}

// NewServer creates the API server and wires every route.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Server{
		router:   mux.NewRouter(),
		db:       opts.DB,
		driver:   opts.Driver,
		engine:   opts.Engine,
		store:    opts.Store,
		recorder: opts.Recorder,
		logger:   logger,
		health:   observability.NewHealthChecker(opts.DB),
	}

	s.setupRoutes(opts.Registry)

	s.router.Use(middleware.RequestLogging(logger))
	if opts.Registry != nil {
		s.router.Use(middleware.NewRequestMetrics(opts.Registry).Handler)
	}
	if opts.RateLimiter != nil {
		s.router.Use(opts.RateLimiter.Handler)
	}
	return s
}

func (s *Server) setupRoutes(registry *prometheus.Registry) {
	// Process façade routes
	s.router.HandleFunc("/checker-maker", s.startProcess).Methods("POST")
	s.router.HandleFunc("/checker-maker/instances", s.listInstances).Methods("GET")
	s.router.HandleFunc("/checker-maker/instances/{id}", s.getInstance).Methods("GET")
	s.router.HandleFunc("/checker-maker/instances/{id}/tasks", s.listTasks).Methods("GET")
	s.router.HandleFunc("/checker-maker/instances/{id}/tasks/{taskId}/complete", s.completeTask).Methods("POST")
	s.router.HandleFunc("/checker-maker/health", s.processHealth).Methods("GET")
	s.router.HandleFunc("/checker-maker/audit-logs", s.recentAuditLogs).Methods("GET")
	s.router.HandleFunc("/checker-maker/audit-logs/instance/{instanceId}", s.instanceAuditLogs).Methods("GET")

	// Engine-table audit routes (read-only SQL over engine-owned tables)
	s.router.HandleFunc("/audit/process/{instanceId}", s.processAudit).Methods("GET")
	s.router.HandleFunc("/audit/processes", s.processesAudit).Methods("GET")
	s.router.HandleFunc("/audit/tasks/{instanceId}", s.taskAudit).Methods("GET")
	s.router.HandleFunc("/audit/schema", s.schemaInfo).Methods("GET")

	// Detailed audit query API
	audit.NewHandlers(s.store).RegisterRoutes(s.router)

	// Operational endpoints
	s.router.HandleFunc("/health/live", s.health.Liveness).Methods("GET")
	s.router.HandleFunc("/health/ready", s.health.Readiness).Methods("GET")
	if registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
