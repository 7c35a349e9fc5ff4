// Package server provides the HTTP interface to an execstore Store.
//
// # Endpoints
//
//   - GET /health - Simple health check, returns "ok"
//   - GET /api/status - Store stats, build info and the next scheduled stats push
//   - GET /records - All records as a JSON array, in no particular order
//   - POST /records - Adds the JSON record in the body, assigning an ID if it has none
//   - GET /records/latest - The record written by the most recent add
//   - GET /records/{id} - A single record
//   - GET /config - The current runtime config as YAML
//   - PUT /config - Replaces the runtime config with the YAML body
//   - POST /reload - Reloads the runtime config file into the store
//   - POST /store/reload - Re-reads a persistent store from disk (disk backend only)
//   - GET /metrics - Prometheus metrics
//
// # Example
//
//	srv, err := server.New(cfg, store.NewMemoryStore(), logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nomis52/execstore/buildinfo"
	"github.com/nomis52/execstore/config"
	"github.com/nomis52/execstore/metrics"
	"github.com/nomis52/execstore/server/cron"
	"github.com/nomis52/execstore/server/handlers"
	"github.com/nomis52/execstore/server/types"
	"github.com/nomis52/execstore/store"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// ErrNoRuntimeConfigPath is returned by Reload when no runtime config file is configured.
var ErrNoRuntimeConfigPath = errors.New("no runtime config file configured")

// Server is the HTTP server in front of a Store.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	backend    store.Store
	store      *store.Instrumented
	registry   *metrics.ScrapeRegistry
	props      types.ServerProperties
	httpServer *http.Server

	pusher      *statsPusher
	pushTrigger *cron.CronTrigger
	certLoader  *CertLoader
}

// New creates a Server for backend. The backend is wrapped so that every operation
// is counted on /metrics. If cfg names a runtime config file it is loaded into the
// store before New returns.
func New(cfg *config.Config, backend store.Store, logger *slog.Logger) (*Server, error) {
	registry, err := metrics.NewScrapeRegistry()
	if err != nil {
		return nil, fmt.Errorf("creating metrics registry: %w", err)
	}

	instrumented, err := store.NewInstrumented(backend, registry)
	if err != nil {
		return nil, fmt.Errorf("instrumenting store: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to get hostname: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		store:    instrumented,
		registry: registry,
		props: types.ServerProperties{
			Build:     buildinfo.Get(),
			StartedAt: time.Now(),
			Hostname:  hostname,
			Backend:   cfg.Store.Backend,
		},
	}

	if cfg.RuntimeConfig != "" {
		if err := s.Reload(); err != nil {
			return nil, err
		}
	}

	if cfg.Monitoring.PushEnabled() {
		s.pusher, err = newStatsPusher(metrics.NewPushRegistry(metrics.PushConfig{
			URL:      cfg.Monitoring.PushURL,
			Prefix:   cfg.Monitoring.Prefix,
			Job:      cfg.Monitoring.Job,
			Instance: hostname,
			Timeout:  cfg.Monitoring.PushTimeout,
		}))
		if err != nil {
			return nil, err
		}
		s.pushTrigger, err = cron.NewCronTrigger(cfg.Monitoring.PushSchedule, "push store stats", s.pushStats, logger)
		if err != nil {
			return nil, fmt.Errorf("creating push trigger: %w", err)
		}
	}

	if cfg.Listener.TLSEnabled() {
		s.certLoader, err = NewCertLoader(cfg.Listener.CertFile, cfg.Listener.KeyFile, logger)
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Store returns the instrumented store the server serves.
func (s *Server) Store() store.Store {
	return s.store
}

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// Reload reads the runtime config file and replaces the store's runtime config with it.
func (s *Server) Reload() error {
	if s.cfg.RuntimeConfig == "" {
		return ErrNoRuntimeConfigPath
	}

	rc, err := config.LoadRuntimeConfig(s.cfg.RuntimeConfig)
	if err != nil {
		return err
	}
	if err := s.store.SetRuntimeConfig(rc); err != nil {
		return fmt.Errorf("storing runtime config: %w", err)
	}

	s.logger.Info("runtime config loaded", "path", s.cfg.RuntimeConfig)
	return nil
}

// Stats summarises the store.
func (s *Server) Stats() (store.Stats, error) {
	return store.Collect(s.store)
}

// NextPush returns the next scheduled stats push, or nil if pushing is disabled.
func (s *Server) NextPush() *time.Time {
	if s.pushTrigger == nil {
		return nil
	}
	next := s.pushTrigger.NextRun()
	return &next
}

// Properties returns metadata about this server instance.
func (s *Server) Properties() types.ServerProperties {
	return s.props
}

func (s *Server) pushStats(ctx context.Context) error {
	stats, err := s.Stats()
	if err != nil {
		return err
	}
	return s.pusher.push(ctx, stats)
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It performs a graceful shutdown when the context is done.
// If a push schedule is configured, the push trigger is started as well.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Listener.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}
	if s.certLoader != nil {
		s.httpServer.TLSConfig = s.certLoader.TLSConfig()
	}

	if s.pushTrigger != nil {
		s.logger.Info("starting stats push trigger", "next_push", s.pushTrigger.NextRun())
		s.pushTrigger.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"addr", s.cfg.Listener.Addr,
			"tls", s.certLoader != nil,
			"backend", s.props.Backend,
		)
		var err error
		if s.certLoader != nil {
			err = s.httpServer.ListenAndServeTLS("", "")
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", handlers.HandleHealth)
	mux.Handle("GET /api/status", handlers.NewAPIStatusHandler(s.logger, s))

	mux.Handle("GET /records", handlers.NewRecordListHandler(s.logger, s.store))
	mux.Handle("POST /records", handlers.NewAddRecordHandler(s.logger, s.store))
	mux.Handle("GET /records/latest", handlers.NewLatestRecordHandler(s.logger, s.store))
	mux.Handle("GET /records/{id}", handlers.NewRecordHandler(s.logger, s.store))

	mux.Handle("GET /config", handlers.NewRuntimeConfigHandler(s.logger, s.store))
	mux.Handle("PUT /config", handlers.NewSetRuntimeConfigHandler(s.logger, s.store))
	mux.Handle("POST /reload", handlers.NewReloadHandler(s.logger, s))

	if r, ok := s.backend.(handlers.Reloader); ok {
		mux.Handle("POST /store/reload", handlers.NewStoreReloadHandler(s.logger, r))
	}

	mux.Handle("GET /metrics", s.registry.Handler())
}
