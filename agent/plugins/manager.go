package plugins

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/aicli/types"
)

const instrumentationName = "github.com/BaSui01/aicli/agent/plugins"

// MetricsObserver receives hook and lifecycle outcomes. err is nil on success.
type MetricsObserver interface {
	ObserveHook(hook, plugin string, duration time.Duration, err error)
	ObserveLifecycle(phase, plugin string, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveHook(string, string, time.Duration, error) {}
func (nopObserver) ObserveLifecycle(string, string, error)           {}

// Manager coordinates the registry, the hook executor, plugin lifecycle,
// configuration persistence and discovery. Build one per process and pass
// it to the call sites that run hooks.
type Manager struct {
	registry     *InMemoryPluginRegistry
	store        StateStore
	discoveryDir string
	observer     MetricsObserver
	tracer       trace.Tracer
	logger       *zap.Logger

	lifecycleMu sync.Mutex
	initOrder   []initialized
}

type initialized struct {
	name   string
	plugin Plugin
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithRegistry uses an existing registry instead of a new one.
func WithRegistry(r *InMemoryPluginRegistry) ManagerOption {
	return func(m *Manager) { m.registry = r }
}

// WithStateStore persists configuration changes made through the manager.
func WithStateStore(store StateStore) ManagerOption {
	return func(m *Manager) { m.store = store }
}

// WithMetrics reports hook and lifecycle outcomes to obs.
func WithMetrics(obs MetricsObserver) ManagerOption {
	return func(m *Manager) { m.observer = obs }
}

// WithTracerProvider sets the tracer provider. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) ManagerOption {
	return func(m *Manager) { m.tracer = tp.Tracer(instrumentationName) }
}

// WithDiscoveryDir sets the directory scanned by Discover.
func WithDiscoveryDir(dir string) ManagerOption {
	return func(m *Manager) { m.discoveryDir = dir }
}

// NewManager creates a Manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.registry == nil {
		m.registry = NewInMemoryPluginRegistry(m.logger)
	}
	if m.observer == nil {
		m.observer = nopObserver{}
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer(instrumentationName)
	}
	m.logger = m.logger.With(zap.String("component", "plugin_manager"))
	return m
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *InMemoryPluginRegistry {
	return m.registry
}

// Register adds a plugin. See InMemoryPluginRegistry.Register.
func (m *Manager) Register(plugin Plugin, opts ...RegisterOption) error {
	return m.registry.Register(plugin, opts...)
}

// Unregister removes a plugin, shutting it down if it was initialized.
func (m *Manager) Unregister(ctx context.Context, name string) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if err := m.registry.Unregister(ctx, name); err != nil {
		return err
	}
	for i, rec := range m.initOrder {
		if rec.name == name {
			m.initOrder = append(m.initOrder[:i:i], m.initOrder[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the plugin registered under name.
func (m *Manager) Get(name string) (Plugin, error) {
	return m.registry.Get(name)
}

// List returns all plugins in registration order.
func (m *Manager) List() []PluginInfo {
	return m.registry.List()
}

// Enable enables a plugin and persists its configuration.
func (m *Manager) Enable(ctx context.Context, name string) error {
	if err := m.registry.SetEnabled(name, true); err != nil {
		return err
	}
	m.logger.Info("plugin enabled", zap.String("name", name))
	return m.persist(ctx, name)
}

// Disable disables a plugin and persists its configuration. The plugin
// leaves every hook chain immediately and stays registered.
func (m *Manager) Disable(ctx context.Context, name string) error {
	if err := m.registry.SetEnabled(name, false); err != nil {
		return err
	}
	m.logger.Info("plugin disabled", zap.String("name", name))
	return m.persist(ctx, name)
}

// SetPriority changes a plugin's priority and persists its configuration.
func (m *Manager) SetPriority(ctx context.Context, name string, priority int) error {
	if err := m.registry.SetPriority(name, priority); err != nil {
		return err
	}
	m.logger.Info("plugin priority changed", zap.String("name", name), zap.Int("priority", priority))
	return m.persist(ctx, name)
}

// persist saves the plugin configuration. The in-memory change stays applied
// when the store fails.
func (m *Manager) persist(ctx context.Context, name string) error {
	if m.store == nil {
		return nil
	}
	info, err := m.registry.Info(name)
	if err != nil {
		return err
	}
	if err := m.store.Save(ctx, name, info.Config); err != nil {
		m.logger.Error("persist plugin config failed", zap.String("name", name), zap.Error(err))
		return fmt.Errorf("persist plugin %s config: %w", name, err)
	}
	return nil
}

// LoadConfig reads the state store and applies its entries.
func (m *Manager) LoadConfig(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	entries, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load plugin config: %w", err)
	}
	m.logger.Info("plugin config loaded", zap.Int("entries", len(entries)))
	return m.ApplyConfig(entries)
}

// ApplyConfig applies configuration entries keyed by plugin name. Entries for
// unknown plugins are retained until a plugin of that name registers.
// Initialized plugins implementing Configurable receive their new settings.
func (m *Manager) ApplyConfig(entries map[string]ConfigEntry) error {
	m.registry.ApplyConfig(entries)

	var errs []error
	for name := range entries {
		info, err := m.registry.Info(name)
		if err != nil {
			m.logger.Debug("config entry retained for unregistered plugin", zap.String("name", name))
			continue
		}
		if info.State != PluginStateInitialized {
			continue
		}
		if c, ok := info.Plugin.(Configurable); ok {
			if err := c.Configure(info.Config.Settings); err != nil {
				errs = append(errs, fmt.Errorf("configure plugin %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// ResolveSchema returns the merged schema of a record kind.
func (m *Manager) ResolveSchema(kind types.RecordKind) ResolvedSchema {
	return m.registry.ResolveSchema(kind)
}

// ApplyDefaults sets every absent plugin field of rec that declares a default.
func (m *Manager) ApplyDefaults(rec types.Record) {
	rs := m.registry.ResolveSchema(rec.Kind())
	ext := rs.Extensions()
	for _, name := range ext.Names() {
		spec := ext[name]
		if spec.Default == nil || rec.Ext().Has(name) {
			continue
		}
		rec.Set(name, spec.Default)
	}
}

// Validate type-checks the plugin fields of rec against the resolved schema.
// Fields no plugin declares are preserved and not checked.
func (m *Manager) Validate(rec types.Record) error {
	rs := m.registry.ResolveSchema(rec.Kind())
	ext := rec.Ext()
	var errs []error
	for _, name := range rs.Extensions().Names() {
		v, ok := ext[name]
		if !ok {
			continue
		}
		if _, err := rs.Fields[name].Type.Normalize(v); err != nil {
			errs = append(errs, fmt.Errorf("%s.%s (plugin %s): %w", rec.Kind(), name, rs.Sources[name], err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return types.NewError(types.ErrInvalidRequest, "invalid plugin fields").WithCause(errors.Join(errs...))
}
