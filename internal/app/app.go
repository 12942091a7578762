// Package app wires all readalong subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects the
// persistence layer, the attempt [Manager], and the HTTP side surface
// (/metrics, /healthz, /readyz); Run executes until the context is
// cancelled; Shutdown tears everything down in order.
//
// For testing, inject fakes via functional options (WithStore,
// WithStories, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/lukereed/readalong/internal/config"
	"github.com/lukereed/readalong/internal/health"
	"github.com/lukereed/readalong/internal/observe"
	"github.com/lukereed/readalong/pkg/store"
	memstore "github.com/lukereed/readalong/pkg/store/mock"
	"github.com/lukereed/readalong/pkg/store/postgres"
	"github.com/lukereed/readalong/pkg/story"
)

// shutdownGrace is how long Run gives the HTTP server to drain connections
// once the context is cancelled.
const shutdownGrace = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	store   store.Store
	stories story.Provider
	manager *Manager
	metrics *observe.Metrics
	httpSrv *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of creating one from config.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithStories injects a story provider instead of the built-in starter set.
func WithStories(p story.Provider) Option {
	return func(a *App) { a.stories = p }
}

// WithMetrics injects a metrics instance instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.providers == nil {
		a.providers = &Providers{}
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	if a.stories == nil {
		if err := a.initStories(); err != nil {
			return nil, fmt.Errorf("app: init stories: %w", err)
		}
	}

	mgr, err := NewManager(ManagerConfig{
		Store:     a.store,
		Stories:   a.stories,
		Providers: a.providers,
		Config:    cfg,
		Metrics:   a.metrics,
	})
	if err != nil {
		return nil, err
	}
	a.manager = mgr

	a.initHTTP()

	return a, nil
}

// initStories loads the configured story catalog, or falls back to the
// built-in starter set when no catalog directory is configured.
func (a *App) initStories() error {
	if dir := a.cfg.Stories.Dir; dir != "" {
		catalog, err := story.LoadDir(dir)
		if err != nil {
			return err
		}
		a.stories = catalog
		slog.Info("story catalog loaded", "dir", dir, "stories", len(catalog.IDs()))
		return nil
	}
	a.stories = story.Builtin()
	return nil
}

// initStore connects the configured storage backend or keeps an injected one.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	switch a.cfg.Storage.Backend {
	case config.StorageMemory:
		a.store = memstore.New()
		slog.Info("using in-memory store; attempts are lost on restart")
		return nil

	case config.StoragePostgres:
		st, err := postgres.NewStore(ctx, a.cfg.Storage.PostgresDSN)
		if err != nil {
			return err
		}
		a.store = st
		a.closers = append(a.closers, func() error {
			st.Close()
			return nil
		})
		slog.Info("connected to postgres store")
		return nil

	default:
		return fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
}

// initHTTP builds the operational HTTP surface: Prometheus scrape endpoint
// and the health probes, all behind the observability middleware.
func (a *App) initHTTP() {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(health.StoreChecker(a.store)).Register(mux)

	a.httpSrv = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Manager exposes the attempt manager for callers that drive attempts
// directly (the command layer and tests).
func (a *App) Manager() *Manager { return a.manager }

// Store exposes the persistence layer.
func (a *App) Store() store.Store { return a.store }

// Run serves HTTP and blocks until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", a.httpSrv.Addr)
		var err error
		if a.cfg.Server.TLS != nil {
			err = a.httpSrv.ListenAndServeTLS(a.cfg.Server.TLS.CertFile, a.cfg.Server.TLS.KeyFile)
		} else {
			err = a.httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := a.httpSrv.Shutdown(drainCtx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}
		return ctx.Err()
	})

	return g.Wait()
}

// Shutdown aborts live attempts and tears down all subsystems in order. It
// respects the context deadline: if ctx expires, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "live_attempts", len(a.manager.Active()))

		if err := a.manager.Shutdown(ctx); err != nil {
			slog.Warn("manager shutdown error", "err", err)
			shutdownErr = err
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
