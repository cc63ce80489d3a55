/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/hydroplan/internal/api"
	"github.com/friendsincode/hydroplan/internal/cache"
	"github.com/friendsincode/hydroplan/internal/config"
	"github.com/friendsincode/hydroplan/internal/db"
	"github.com/friendsincode/hydroplan/internal/eventbus"
	"github.com/friendsincode/hydroplan/internal/events"
	"github.com/friendsincode/hydroplan/internal/leadership"
	"github.com/friendsincode/hydroplan/internal/logbuffer"
	"github.com/friendsincode/hydroplan/internal/planner"
	"github.com/friendsincode/hydroplan/internal/storage"
	"github.com/friendsincode/hydroplan/internal/store"
	"github.com/friendsincode/hydroplan/internal/telemetry"
	"github.com/friendsincode/hydroplan/internal/version"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg           *config.Config
	logger        zerolog.Logger
	router        chi.Router
	httpServer    *http.Server
	metricsServer *http.Server
	closers       []func() error

	db      *gorm.DB
	store   store.Store
	cache   *cache.Cache
	bus     events.Broker
	planner *planner.Service
	objects storage.ObjectStore
	api     *api.API
	logs    *logbuffer.Buffer

	election  *leadership.Election
	snapshots *storage.Scheduler

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies. logBuf may be nil, in
// which case GET /api/v1/logs answers 503.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("hydroplan-api"))
	router.Use(telemetry.MetricsMiddleware)
	// The event stream is long-lived; everything else gets a deadline.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		logs:   logBuf,
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// WriteTimeout stays 0 for the websocket stream; the middleware
		// timeout covers ordinary routes.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.MetricsBind != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.Handler())
		srv.metricsServer = &http.Server{
			Addr:              cfg.MetricsBind,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	s.DeferClose(func() error { return db.Close(database) })
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	s.db = database
	s.store = store.NewRepository(database, s.logger)

	// Timeline cache. Redis outages degrade to recomputing.
	var timelines planner.TimelineCache
	if s.cfg.CacheEnabled() {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		cacheCfg.TimelineTTL = s.cfg.CacheTTL
		timelineCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = timelineCache
			timelines = timelineCache
			s.DeferClose(func() error { return s.cache.Close() })
		}
	}

	if s.cfg.NATSURL != "" {
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		natsBus, err := eventbus.NewNATSBus(natsCfg, s.logger)
		if err != nil {
			return fmt.Errorf("connect event bus: %w", err)
		}
		s.bus = natsBus
		s.DeferClose(natsBus.Close)
	} else {
		s.bus = events.NewBus()
	}

	objects, err := storage.New(context.Background(), s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("initialize snapshot storage: %w", err)
	}
	if fsStore, ok := objects.(*storage.FSStore); ok {
		if err := fsStore.CheckAccess(context.Background()); err != nil {
			return err
		}
	}
	s.objects = objects

	if s.cfg.SnapshotInterval > 0 {
		var leader leadership.Leader = leadership.Solo{}
		if s.cfg.RedisAddr != "" {
			electionCfg := leadership.DefaultConfig()
			electionCfg.RedisAddr = s.cfg.RedisAddr
			electionCfg.RedisPassword = s.cfg.RedisPassword
			electionCfg.RedisDB = s.cfg.RedisDB
			election, err := leadership.NewElection(electionCfg, s.logger)
			if err != nil {
				return fmt.Errorf("start leader election: %w", err)
			}
			s.election = election
			leader = election
			s.DeferClose(election.Stop)
		}
		s.snapshots = storage.NewScheduler(s.store, s.objects, leader, s.bus, s.cfg.SnapshotInterval, s.logger)
	}

	s.planner = planner.NewService(s.store, timelines, s.bus, s.logger)
	s.api = api.New(s.store, s.planner, s.objects, s.bus, s.logs, s.logger)
	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// MetricsServer returns the dedicated metrics listener, or nil when metrics
// are served on the main router.
func (s *Server) MetricsServer() *http.Server {
	return s.metricsServer
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.db != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					db.UpdateConnectionMetrics(s.db)
				}
			}
		}()
	}

	if s.election != nil {
		s.election.Start(ctx)
	}
	if s.snapshots != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.snapshots.Run(ctx)
		}()
	}

	if s.cache != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.runCacheInvalidationListener(ctx)
		}()
	}
}

// runCacheInvalidationListener drops cached timelines when the whole
// session is replaced. Entries are content-addressed; this only frees
// memory.
func (s *Server) runCacheInvalidationListener(ctx context.Context) {
	imported := s.bus.Subscribe(events.EventProjectImported)
	reset := s.bus.Subscribe(events.EventProjectReset)
	defer func() {
		s.bus.Unsubscribe(events.EventProjectImported, imported)
		s.bus.Unsubscribe(events.EventProjectReset, reset)
	}()

	s.logger.Info().Msg("cache invalidation listener started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cache invalidation listener stopped")
			return
		case <-imported:
			s.logger.Debug().Msg("invalidating timeline cache (project imported)")
			_ = s.cache.InvalidateTimelines(ctx)
		case <-reset:
			s.logger.Debug().Msg("invalidating timeline cache (project reset)")
			_ = s.cache.InvalidateTimelines(ctx)
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"version": version.Current(),
		})
	})

	if s.cfg.MetricsBind == "" {
		s.router.Handle("/metrics", telemetry.Handler())
	}

	s.api.Routes(s.router)
}
