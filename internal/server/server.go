// Package server exposes the ask pipeline over HTTP for editor integrations
// and dashboards. Translation and execution run per request against the
// registry's current snapshot; a cache watcher can swap that snapshot while
// requests are in flight.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/askdb/internal/registry"
	"github.com/leapstack-labs/askdb/internal/translate"
	"github.com/leapstack-labs/askdb/pkg/metadata"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultRowLimit = 100
	shutdownGrace   = 5 * time.Second
)

// Config holds the server configuration.
type Config struct {
	Addr string
	// Timeout bounds each request, including translation and execution.
	Timeout time.Duration
	// RowLimit caps executed results when the request does not set one.
	RowLimit int
}

// Dependencies are the server's collaborators.
type Dependencies struct {
	Translator *translate.Translator
	Registry   *registry.Registry
	Build      registry.BuildFunc
	// Provider executes validated SQL. When nil the server translates and
	// validates only.
	Provider metadata.Provider
	// WatchPath is the cache artifact to watch for reloads; empty disables
	// the watcher.
	WatchPath string
	Logger    *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	cfg    Config
	deps   Dependencies
	logger *slog.Logger
}

func New(cfg Config, deps Dependencies) *Server {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = defaultRowLimit
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{cfg: cfg, deps: deps, logger: logger}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Recoverer,
		middleware.Timeout(s.cfg.Timeout),
	)

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/schema/tables", s.handleTables)
	r.Post("/api/ask", s.handleAsk)

	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting API server", "addr", s.cfg.Addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.deps.WatchPath != "" {
		eg.Go(func() error {
			return s.deps.Registry.Watch(egctx, s.deps.WatchPath)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
