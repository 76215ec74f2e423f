package builtin

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/BaSui01/aicli/agent/plugins"
)

// Built-in plugin names.
const (
	LoggingName      = "logging"
	CacheName        = "cache"
	CustomParamsName = "custom_params"
)

// Deps carries the shared collaborators of built-in plugins.
type Deps struct {
	Logger *zap.Logger
	// Store backs the cache plugin. Nil means a bounded in-memory store.
	Store ResponseStore
	// CacheObserver receives cache hits and misses. May be nil.
	CacheObserver CacheObserver
}

type factory func(Deps) plugins.Plugin

var factories = map[string]factory{
	LoggingName: func(d Deps) plugins.Plugin { return NewLoggingPlugin(d.Logger) },
	CacheName: func(d Deps) plugins.Plugin {
		return NewCachePlugin(d.Store, d.Logger, WithCacheObserver(d.CacheObserver))
	},
	CustomParamsName: func(Deps) plugins.Plugin { return NewCustomParamsPlugin() },
}

// Names returns the names of all built-in plugins, sorted.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the named built-in plugin.
func New(name string, deps Deps) (plugins.Plugin, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown builtin plugin %q", name)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return f(deps), nil
}

// Register builds the named built-ins and registers them with m in the given
// order. Registration stops at the first error.
func Register(m *plugins.Manager, names []string, deps Deps) error {
	for _, name := range names {
		p, err := New(name, deps)
		if err != nil {
			return err
		}
		if err := m.Register(p); err != nil {
			return fmt.Errorf("register builtin %s: %w", name, err)
		}
	}
	return nil
}
