// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	apihandler "github.com/newthinker/archivist/internal/api/handler/api"
	"github.com/newthinker/archivist/internal/api/middleware"
	"github.com/newthinker/archivist/internal/journal"
	"github.com/newthinker/archivist/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the HTTP intake for archive requests
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	APIKey       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MetricsPath  string
}

// Dependencies holds what the handlers serve
type Dependencies struct {
	Router   apihandler.Router
	Verifier apihandler.Verifier
	Journal  *journal.Store
	Metrics  *metrics.Registry
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("router is required")
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	// Requests run synchronously, so writes wait on the slowest move.
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}

	mux := http.NewServeMux()

	s := &Server{
		logger: logger,
		mux:    mux,
	}
	s.setupRoutes(cfg, deps)

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	}
	handler = metrics.LoggingMiddleware(logger)(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	auth := middleware.APIKeyAuth(cfg.APIKey)

	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	if deps.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	requests := apihandler.NewRequestsHandler(deps.Router)
	s.mux.Handle("POST /api/v1/requests", auth(http.HandlerFunc(requests.Submit)))

	if deps.Journal != nil {
		ops := apihandler.NewOperationsHandler(deps.Journal)
		s.mux.Handle("GET /api/v1/operations", auth(http.HandlerFunc(ops.List)))
		s.mux.Handle("GET /api/v1/operations/{id}", auth(http.HandlerFunc(ops.Get)))
	}

	if deps.Verifier != nil {
		objects := apihandler.NewObjectsHandler(deps.Verifier)
		s.mux.Handle("GET /api/v1/objects/{id}/verify", auth(http.HandlerFunc(objects.Verify)))
	}
}

// Handler returns the root handler, middleware included
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Serve serves on an existing listener
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
