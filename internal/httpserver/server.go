// Package httpserver exposes the batch run's metrics and health over HTTP
// for scraping by Prometheus or probing by an orchestrator.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jmylchreest/bunker/internal/jobhistory"
	"github.com/jmylchreest/bunker/internal/pipeline/metrics"
)

// recentRunsLimit bounds the GET /runs response.
const recentRunsLimit = 50

// Config holds metrics HTTP server configuration.
type Config struct {
	Address         string
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Address:         ":9090",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server serves /metrics and /healthz for a single executor's metrics
// collector.
type Server struct {
	config     Config
	router     *chi.Mux
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a metrics HTTP server backed by the given collector. store
// is optional (may be nil) and backs GET /runs; a nil store answers 200
// with a JSON null body rather than failing the request.
func New(config Config, collector *metrics.Collector, store *jobhistory.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestID)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		snapshot := collector.Snapshot()
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(snapshot.ToPrometheus()))
	})

	router.Get("/runs", func(w http.ResponseWriter, r *http.Request) {
		runs, err := store.Recent(recentRunsLimit)
		if err != nil {
			logger.Error("querying recent pipeline runs",
				slog.String("error", err.Error()),
				slog.String("request_id", requestIDFromContext(r.Context())),
			)
			http.Error(w, "failed to query run history", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(runs)
	})

	return &Server{config: config, router: router, logger: logger}
}

// Router returns the underlying chi router for registering additional routes.
func (s *Server) Router() *chi.Mux { return s.router }

// Start runs the server; it blocks until the server stops or errors.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("starting metrics server", slog.String("address", s.config.Address))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("starting metrics server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down metrics server: %w", err)
	}
	return nil
}

// ListenAndServe starts the server and blocks until ctx is cancelled or the
// server errors, then performs a graceful shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Start()
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}
