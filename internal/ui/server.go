// Package ui provides the web dashboard: a live grid over the target
// database, one viewport per browser session.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/gridview/internal/config"
	"github.com/leapstack-labs/gridview/internal/grid"
	"github.com/leapstack-labs/gridview/internal/remote"
	gridFeature "github.com/leapstack-labs/gridview/internal/ui/features/grid"
	"github.com/leapstack-labs/gridview/internal/ui/router"
	"github.com/leapstack-labs/gridview/pkg/adapter"
	"github.com/leapstack-labs/gridview/pkg/core"
)

// Server is the dashboard server.
type Server struct {
	db           adapter.Adapter
	registry     *gridFeature.Registry
	sessionStore *sessions.CookieStore
	port         int
	watch        bool
	isDev        bool
	logger       *slog.Logger
}

// Config holds configuration for the dashboard server.
type Config struct {
	Adapter       adapter.Adapter
	Store         core.StateStore
	Viewport      config.ViewportConfig
	Port          int
	Watch         bool
	SessionSecret string
	Dev           bool
	Logger        *slog.Logger
}

// NewServer creates a new dashboard server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.MaxAge(86400 * 30) // 30 days
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	return &Server{
		db: cfg.Adapter,
		registry: gridFeature.NewRegistry(cfg.Adapter, grid.Options{
			Viewport: cfg.Viewport,
			Store:    cfg.Store,
			Logger:   logger,
		}),
		sessionStore: sessionStore,
		port:         cfg.Port,
		watch:        cfg.Watch,
		isDev:        cfg.Dev,
		logger:       logger,
	}
}

// Handler builds the server's routes.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5, "text/html", "text/css", "text/javascript", "application/json"),
	)

	handlers := gridFeature.NewHandlers(s.db, s.registry, s.sessionStore, s.logger, s.isDev)
	if err := router.SetupRoutes(r, handlers, s.isDev, s.logger); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}
	return r, nil
}

// Registry returns the grid sessions of connected browsers.
func (s *Server) Registry() *gridFeature.Registry {
	return s.registry
}

// Serve starts the server and blocks until the context is cancelled. Open
// grids are closed on the way out.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting dashboard server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	handler, err := s.Handler()
	if err != nil {
		return err
	}
	defer func() {
		if err := s.registry.CloseAll(); err != nil {
			s.logger.Warn("failed to close grids", "error", err)
		}
	}()

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Push changes of a local database file to open grids
	if path := s.db.WatchPath(); s.watch && path != "" {
		eg.Go(func() error {
			return remote.Watch(egctx, path, s.logger, s.registry.PokeAll)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down dashboard server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
