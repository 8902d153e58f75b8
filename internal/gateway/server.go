// Package gateway exposes the HTTP API: the scheduled-task REST surface,
// execution history, health, and Prometheus metrics. It is a thin transport
// over service.TaskService; ownership and validation live there.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/recur/internal/service"
)

// Config holds the HTTP server settings.
type Config struct {
	Listen string

	// AuthToken protects the API routes. Empty disables auth; /health and
	// /metrics are always open.
	AuthToken string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}

// Server is the HTTP gateway. Construct with NewServer, then Start/Stop.
type Server struct {
	cfg      Config
	svc      *service.TaskService
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	server   *http.Server
}

// NewServer creates a Server. The gatherer backs /metrics; nil hides the
// endpoint's collectors behind an empty registry.
func NewServer(cfg Config, svc *service.TaskService, gatherer prometheus.Gatherer, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("gateway: nil task service")
	}
	if cfg.Listen == "" {
		return nil, errors.New("gateway: listen address is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.NewRegistry()
	}

	return &Server{
		cfg:      cfg.withDefaults(),
		svc:      svc,
		logger:   logger,
		gatherer: gatherer,
	}, nil
}

// Handler returns the fully wired router. Exposed for tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Public.
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// API.
	r.Group(func(r chi.Router) {
		if s.cfg.AuthToken != "" {
			r.Use(authMiddleware(s.cfg.AuthToken))
		}
		r.Use(requireUser)

		r.Route("/scheduled-tasks", func(r chi.Router) {
			r.Post("/", s.handleCreate)
			r.Get("/", s.handleList)
			r.Get("/executions", s.handleUserExecutions)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGet)
				r.Put("/", s.handleUpdate)
				r.Delete("/", s.handleDelete)
				r.Post("/pause", s.handlePause)
				r.Post("/resume", s.handleResume)
				r.Post("/run", s.handleRun)
				r.Get("/executions", s.handleTaskExecutions)
			})
		})
	})

	return r
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}

	go func() {
		s.logger.Info("gateway: listening", "addr", s.cfg.Listen)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway: serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("gateway: shutting down")
	return s.server.Shutdown(shutdownCtx)
}
