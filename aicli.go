// Package aicli wires the plugin manager with its collaborators: the state
// store, the response cache backend, built-in and discovered plugins, metrics
// and tracing.
//
// Usage:
//
//	import "github.com/BaSui01/aicli"
//
//	rt, err := aicli.Open(ctx, cfg, logger)
//	if err != nil { ... }
//	defer rt.Close(ctx)
//	rt.Start(ctx)
//	gen := llm.NewHookedGenerator(client, rt.Manager)
//
// The command line in cmd/aicli is a thin layer over this package.
package aicli

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/aicli/agent/plugins"
	"github.com/BaSui01/aicli/agent/plugins/builtin"
	"github.com/BaSui01/aicli/config"
	"github.com/BaSui01/aicli/internal/cache"
	"github.com/BaSui01/aicli/internal/database"
	"github.com/BaSui01/aicli/internal/metrics"
	"github.com/BaSui01/aicli/internal/telemetry"
)

// Runtime holds the components assembled by Open.
type Runtime struct {
	Config  *config.Config
	Manager *plugins.Manager
	Metrics *metrics.Collector
	// Registry gathers the plugin metrics.
	Registry *prometheus.Registry

	logger    *zap.Logger
	telemetry *telemetry.Providers
	db        *database.PoolManager
	cache     *cache.Manager
}

// Open assembles a Runtime from cfg. Built-in plugins are registered in the
// configured order, manifests in the plugin directory are discovered and the
// stored plugin configuration is applied. Plugins are not initialized yet.
// A broken manifest or an unreachable telemetry collector does not fail Open.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (rt *Runtime, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rt = &Runtime{Config: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = rt.Close(context.Background())
			rt = nil
		}
	}()

	rt.telemetry, err = telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
		rt.telemetry = &telemetry.Providers{}
	}

	rt.Registry = prometheus.NewRegistry()
	rt.Metrics = metrics.NewCollectorWithRegistry(cfg.Telemetry.MetricsNamespace, rt.Registry, logger)

	store, err := rt.openStateStore()
	if err != nil {
		return nil, err
	}
	responses, err := rt.openResponseStore()
	if err != nil {
		return nil, err
	}

	rt.Manager = plugins.NewManager(
		plugins.WithLogger(logger),
		plugins.WithStateStore(store),
		plugins.WithMetrics(rt.Metrics),
		plugins.WithTracerProvider(rt.telemetry.TracerProvider()),
		plugins.WithDiscoveryDir(cfg.Plugins.Dir),
	)

	deps := builtin.Deps{
		Logger:        logger,
		Store:         responses,
		CacheObserver: rt.Metrics,
	}
	if err := builtin.Register(rt.Manager, cfg.Plugins.Builtins, deps); err != nil {
		return nil, err
	}

	if _, err := rt.Manager.Discover(ctx); err != nil {
		logger.Warn("plugin discovery reported errors", zap.Error(err))
	}

	if err := rt.Manager.LoadConfig(ctx); err != nil {
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) openStateStore() (plugins.StateStore, error) {
	if rt.Config.Plugins.Store != "database" {
		return plugins.NewFileStateStore(rt.Config.Plugins.ConfigPath), nil
	}

	pm, err := database.Open(rt.Config.Database, rt.logger)
	if err != nil {
		return nil, err
	}
	rt.db = pm
	return plugins.NewGormStateStore(pm.DB())
}

// openResponseStore returns nil for the memory backend; the cache plugin
// then keeps its own bounded store.
func (rt *Runtime) openResponseStore() (builtin.ResponseStore, error) {
	if rt.Config.Plugins.CacheBackend != "redis" {
		return nil, nil
	}

	rc := rt.Config.Redis
	cacheCfg := cache.DefaultConfig()
	cacheCfg.Addr = rc.Addr
	cacheCfg.Password = rc.Password
	cacheCfg.DB = rc.DB
	cacheCfg.KeyPrefix = rc.KeyPrefix
	cacheCfg.DefaultTTL = rc.DefaultTTL
	cacheCfg.PoolSize = rc.PoolSize
	cacheCfg.HealthCheckInterval = 0

	mgr, err := cache.NewManager(cacheCfg, rt.logger)
	if err != nil {
		return nil, fmt.Errorf("open redis cache: %w", err)
	}
	rt.cache = mgr
	return builtin.NewRedisResponseStore(mgr), nil
}

// Start initializes every enabled plugin. Plugins that fail are disabled and
// logged; the others keep running.
func (rt *Runtime) Start(ctx context.Context) {
	if err := rt.Manager.InitializeAll(ctx); err != nil {
		rt.logger.Warn("some plugins failed to initialize", zap.Error(err))
	}
}

// Close shuts plugins down and releases the backends in reverse order.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.Manager != nil {
		if err := rt.Manager.ShutdownAll(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if rt.cache != nil {
		if err := rt.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if err := rt.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
