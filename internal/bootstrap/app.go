// Package bootstrap assembles the application from configuration and runs
// its long-lived components.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cartsync/internal/api"
	"cartsync/internal/core"
	"cartsync/internal/gateway"
	"cartsync/internal/infrastructure/health"
	"cartsync/internal/infrastructure/metrics"
	"cartsync/internal/session"
	"cartsync/internal/storefront"
	"cartsync/pkg/concurrency"
	"cartsync/pkg/liveserver"
	"cartsync/pkg/telemetry"

	"golang.org/x/sync/errgroup"
)

// App holds the wired components
type App struct {
	Cfg       *Config
	Logger    core.ILogger
	Telemetry *telemetry.Telemetry
	Slot      core.ISessionStore
	Pool      *concurrency.WorkerPool
	Gateway   *gateway.Client
	Store     *storefront.Store
	Health    *health.HealthManager

	zap interface{ Sync() error }
}

// NewApp loads configPath and builds every dependency
func NewApp(configPath string) (*App, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return NewAppFromConfig(cfg)
}

// NewAppFromConfig builds every dependency from an already loaded config
func NewAppFromConfig(cfg *Config) (*App, error) {
	tel, err := telemetry.Setup(telemetry.Options{
		ServiceName:     "cartsync",
		EnableTracing:   cfg.Telemetry.EnableTracing,
		EnableLogExport: cfg.Telemetry.EnableLogExport,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	zl, err := InitLogger(cfg)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("logger: %w", err)
	}

	slot, err := session.OpenStore(cfg.Session.Store, cfg.Session.Path, cfg.Session.Key)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("session store: %w", err)
	}

	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "cart_sync",
		MaxWorkers:  cfg.Sync.Workers,
		MaxCapacity: cfg.Sync.QueueCapacity,
		NonBlocking: true,
	}, zl)

	gw := gateway.NewClient(cfg.Gateway, zl)
	store := storefront.New(gw, slot, pool, zl)

	app := &App{
		Cfg:       cfg,
		Logger:    zl,
		Telemetry: tel,
		Slot:      slot,
		Pool:      pool,
		Gateway:   gw,
		Store:     store,
		Health:    health.NewHealthManager(zl),
		zap:       zl,
	}
	app.registerHealthChecks()
	return app, nil
}

func (a *App) registerHealthChecks() {
	a.Health.Register("catalog", func(context.Context) error {
		if !a.Store.CatalogLoaded() {
			return errors.New("catalog not loaded")
		}
		return nil
	})
	a.Health.Register("gateway", func(context.Context) error {
		if a.Gateway.CircuitOpen() {
			return errors.New("circuit breaker open")
		}
		return nil
	})
	if p, ok := a.Slot.(session.Pinger); ok {
		a.Health.Register("session_store", p.Ping)
	}
}

// Runner is an interface for components that can be run and stopped gracefully.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// ServeRunners builds the live server, its feed hub and, when enabled, the
// standalone metrics server. Cart changes are pushed to the feed.
func (a *App) ServeRunners() []Runner {
	hub := liveserver.NewHub(a.Logger)
	srv := liveserver.NewServer(hub, a.Logger, liveserver.Options{
		Addr:           a.Cfg.Server.Addr,
		AllowedOrigins: a.Cfg.Server.AllowedOrigins,
		Production:     a.Cfg.Server.Production,
		MaxConnections: a.Cfg.Server.MaxConnections,
		RateLimit:      a.Cfg.Server.RateLimit,
		RateBurst:      a.Cfg.Server.RateBurst,
		StaticDir:      a.Cfg.Server.StaticDir,
	})
	srv.SetHealthHandler(a.Health.Handler())
	api.NewHandler(a.Store, srv, a.Logger).Register(srv)

	a.Store.Subscribe(func(snap core.CartSnapshot) {
		srv.Broadcast(liveserver.NewCartMessage(snap))
	})
	srv.Broadcast(liveserver.NewCartMessage(a.Store.Snapshot()))
	_, active := a.Store.Token()
	srv.Broadcast(liveserver.NewSessionMessage(active))

	runners := []Runner{
		RunnerFunc(func(ctx context.Context) error {
			hub.Run(ctx)
			return nil
		}),
		srv,
	}
	if a.Cfg.Telemetry.EnableMetrics && a.Cfg.Telemetry.MetricsPort > 0 {
		runners = append(runners, metrics.NewServer(a.Cfg.Telemetry.MetricsPort, a.Logger))
	}
	return runners
}

// Run orchestrates the application lifecycle, including signal handling.
// The first runner error cancels the others.
func (a *App) Run(ctx context.Context, runners ...Runner) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	a.Logger.Info("Starting application", "runners", len(runners))
	for _, r := range runners {
		g.Go(func() error {
			return r.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error("Application stopped with error", "error", err)
		return err
	}

	a.Logger.Info("Application shut down gracefully")
	return nil
}

// Close drains pending cart notifications and releases resources
func (a *App) Close() error {
	a.Pool.Stop()

	var errs []error
	if err := a.Slot.Close(); err != nil {
		errs = append(errs, fmt.Errorf("session store: %w", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	_ = a.zap.Sync()

	return errors.Join(errs...)
}
