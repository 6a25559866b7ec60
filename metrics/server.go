package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ServerConfig contains the configuration of the metrics server.
type ServerConfig struct {
	// ListenAddr is the address and port the server listens on.
	ListenAddr string

	// Log is the structured logger for server operations.
	Log *zap.Logger

	// GracefulShutdownDuration is the maximum time to wait for in-flight
	// scrapes during shutdown.
	GracefulShutdownDuration time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server serves /metrics, /livez and /readyz for the duration of a job.
// It reports ready once the boundary is initialized and stops being ready
// when the job finishes.
type Server struct {
	cfg     *ServerConfig
	isReady atomic.Bool
	log     *zap.Logger

	srv *http.Server
}

// NewServer creates a metrics server exporting c. The server starts out
// not ready.
func NewServer(cfg *ServerConfig, c *Collector) *Server {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{cfg: cfg, log: log}
	s.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.createRouter(c),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) createRouter(c *Collector) http.Handler {
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)

	mux.Handle("/metrics", promhttp.HandlerFor(c.Registry(), promhttp.HandlerOpts{}))
	mux.With(s.httpLogger).Get("/livez", s.handleLivenessCheck)
	mux.With(s.httpLogger).Get("/readyz", s.handleReadinessCheck)

	return mux
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareZap(s.log, next)
}

func (s *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"alive"}`))
}

func (s *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.isReady.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// SetReady flips the readiness state.
func (s *Server) SetReady(ready bool) {
	if s.isReady.Swap(ready) != ready {
		s.log.Info("Readiness changed", zap.Bool("ready", ready))
	}
}

// RunInBackground starts serving in a separate goroutine.
func (s *Server) RunInBackground() {
	go func() {
		s.log.Info("Starting metrics server", zap.String("listenAddress", s.cfg.ListenAddr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Metrics server failed", zap.Error(err))
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() {
	s.isReady.Store(false)

	timeout := s.cfg.GracefulShutdownDuration
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Error("Graceful metrics server shutdown failed", zap.Error(err))
	} else {
		s.log.Info("Metrics server gracefully stopped")
	}
}
