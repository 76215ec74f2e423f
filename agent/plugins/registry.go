package plugins

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/BaSui01/aicli/types"
)

// PluginRegistry defines the interface for managing plugins.
type PluginRegistry interface {
	// Register adds a plugin without initializing it.
	Register(plugin Plugin, opts ...RegisterOption) error
	// Unregister removes a plugin, calling Shutdown first if initialized.
	Unregister(ctx context.Context, name string) error
	// Get returns the plugin registered under name.
	Get(name string) (Plugin, error)
	// Info returns a view of the plugin's descriptor, configuration and state.
	Info(name string) (PluginInfo, error)
	// List returns all plugins in registration order.
	List() []PluginInfo
	// SetEnabled enables or disables a plugin.
	SetEnabled(name string, enabled bool) error
	// SetPriority changes the hook execution priority of a plugin.
	SetPriority(name string, priority int) error
	// ApplyConfig overlays configuration entries keyed by plugin name.
	ApplyConfig(entries map[string]ConfigEntry)
	// Chain returns the plugins run for hook, in execution order.
	Chain(hook HookName) []Plugin
	// ResolveSchema returns the merged schema of a record kind.
	ResolveSchema(kind types.RecordKind) ResolvedSchema
}

// RegisterOption customizes a registration.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	config  *PluginConfig
	replace bool
}

// WithConfig sets the programmatic configuration of the plugin. Entries from
// the configuration source are still applied on top of it.
func WithConfig(cfg PluginConfig) RegisterOption {
	return func(o *registerOptions) {
		c := cfg.Clone()
		o.config = &c
	}
}

// WithReplace allows the registration to replace a plugin of the same name.
// The replacement keeps the original registration slot.
func WithReplace() RegisterOption {
	return func(o *registerOptions) { o.replace = true }
}

type entry struct {
	plugin Plugin
	desc   Descriptor
	config PluginConfig
	state  PluginState
}

// runnable reports whether the plugin may appear in hook chains.
func (e *entry) runnable() bool {
	return e.config.Enabled && e.state != PluginStateShutdown && e.state != PluginStateFailed
}

func (e *entry) info() PluginInfo {
	return PluginInfo{
		Plugin:     e.plugin,
		Descriptor: e.desc,
		Config:     e.config.Clone(),
		State:      e.state,
	}
}

// snapshot is the derived, immutable view published to hook readers.
type snapshot struct {
	chains  map[HookName][]Plugin
	schemas map[types.RecordKind]ResolvedSchema
}

// InMemoryPluginRegistry is a thread-safe in-memory implementation of PluginRegistry.
// Mutations are serialized by mu; hook chains and resolved schemas are
// rebuilt on every mutation and published through an atomic pointer.
type InMemoryPluginRegistry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	pending map[string]ConfigEntry

	snap   atomic.Pointer[snapshot]
	logger *zap.Logger
}

// Compile-time interface compliance check.
var _ PluginRegistry = (*InMemoryPluginRegistry)(nil)

// NewInMemoryPluginRegistry creates a new InMemoryPluginRegistry.
func NewInMemoryPluginRegistry(logger *zap.Logger) *InMemoryPluginRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &InMemoryPluginRegistry{
		entries: make(map[string]*entry),
		pending: make(map[string]ConfigEntry),
		logger:  logger.With(zap.String("component", "plugin_registry")),
	}
	r.rebuildLocked()
	return r
}

// Register adds a plugin in the Registered state. A duplicate name fails with
// ErrPluginAlreadyRegistered unless WithReplace is given; a field whose type
// conflicts with a base field fails with a *SchemaConflictError. On failure
// the registry is unchanged.
func (r *InMemoryPluginRegistry) Register(plugin Plugin, opts ...RegisterOption) error {
	if plugin == nil {
		return fmt.Errorf("plugin must not be nil")
	}
	name := plugin.Name()
	if name == "" {
		return fmt.Errorf("plugin name must not be empty")
	}

	o := registerOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	desc := Describe(plugin)
	if err := validateExtensions(desc); err != nil {
		return err
	}

	r.mu.Lock()
	old, exists := r.entries[name]
	if exists && !o.replace {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPluginAlreadyRegistered, name)
	}

	cfg := DefaultPluginConfig()
	switch {
	case o.config != nil:
		cfg = *o.config
	case exists:
		cfg = old.config.Clone()
	}
	if pe, ok := r.pending[name]; ok {
		cfg = pe.Apply(cfg)
	}

	e := &entry{
		plugin: plugin,
		desc:   desc,
		config: cfg,
		state:  PluginStateRegistered,
	}
	if !exists {
		r.order = append(r.order, name)
	}
	r.entries[name] = e
	r.rebuildLocked()
	warnings := r.warningsForLocked(name)
	r.mu.Unlock()

	for _, w := range warnings {
		r.logger.Warn("schema field skipped", zap.String("plugin", name), zap.String("detail", w.String()))
	}

	if exists {
		r.logger.Info("plugin replaced",
			zap.String("name", name),
			zap.String("version", desc.Version),
			zap.String("previous_version", old.desc.Version))
		if old.state == PluginStateInitialized && old.plugin != plugin {
			if err := old.plugin.Shutdown(context.Background()); err != nil {
				r.logger.Warn("replaced plugin shutdown failed",
					zap.String("name", name),
					zap.Error(err))
			}
		}
		return nil
	}

	r.logger.Info("plugin registered",
		zap.String("name", name),
		zap.String("version", desc.Version),
		zap.Bool("enabled", cfg.Enabled),
		zap.Int("priority", cfg.Priority))
	return nil
}

// Unregister removes a plugin. If it was initialized, Shutdown is called
// after the plugin has left every hook chain.
func (r *InMemoryPluginRegistry) Unregister(ctx context.Context, name string) error {
	r.mu.Lock()
	e, exists := r.entries[name]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	delete(r.entries, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	r.rebuildLocked()
	r.mu.Unlock()

	if e.state == PluginStateInitialized {
		if err := e.plugin.Shutdown(ctx); err != nil {
			r.logger.Warn("plugin shutdown failed during unregister",
				zap.String("name", name),
				zap.Error(err))
		}
	}

	r.logger.Info("plugin unregistered", zap.String("name", name))
	return nil
}

// Get returns the plugin registered under name.
func (r *InMemoryPluginRegistry) Get(name string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return e.plugin, nil
}

// Info returns a view of the plugin registered under name.
func (r *InMemoryPluginRegistry) Info(name string) (PluginInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return PluginInfo{}, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return e.info(), nil
}

// List returns all plugins in registration order.
func (r *InMemoryPluginRegistry) List() []PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]PluginInfo, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.entries[name].info())
	}
	return result
}

// SetEnabled enables or disables a plugin. Re-enabling a plugin whose
// initialization failed returns it to the Registered state.
func (r *InMemoryPluginRegistry) SetEnabled(name string, enabled bool) error {
	return r.mutate(name, func(e *entry) {
		e.config.Enabled = enabled
		if enabled && e.state == PluginStateFailed {
			e.state = PluginStateRegistered
		}
		if pe, ok := r.pending[name]; ok {
			pe.Enabled = &enabled
			r.pending[name] = pe
		}
	})
}

// SetPriority changes the hook execution priority of a plugin.
func (r *InMemoryPluginRegistry) SetPriority(name string, priority int) error {
	return r.mutate(name, func(e *entry) {
		e.config.Priority = priority
		if pe, ok := r.pending[name]; ok {
			pe.Priority = &priority
			r.pending[name] = pe
		}
	})
}

// ApplyConfig overlays configuration entries. Entries naming plugins that are
// not registered are kept and applied when such a plugin registers.
func (r *InMemoryPluginRegistry) ApplyConfig(entries map[string]ConfigEntry) {
	if len(entries) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, ce := range entries {
		r.pending[name] = ce
		if e, ok := r.entries[name]; ok {
			e.config = ce.Apply(e.config)
		}
	}
	r.rebuildLocked()
}

// Chain returns the plugins run for hook, sorted by descending priority with
// ties in registration order. The returned slice must not be modified.
func (r *InMemoryPluginRegistry) Chain(hook HookName) []Plugin {
	return r.snap.Load().chains[hook]
}

// ResolveSchema returns a copy of the merged schema of kind.
func (r *InMemoryPluginRegistry) ResolveSchema(kind types.RecordKind) ResolvedSchema {
	if rs, ok := r.snap.Load().schemas[kind]; ok {
		return rs.clone()
	}
	return baseResolved(kind)
}

// setState updates the lifecycle state of the plugin. When disable is set the
// plugin is also removed from every chain. The update is skipped if the
// plugin was replaced or unregistered in the meantime.
func (r *InMemoryPluginRegistry) setState(name string, plugin Plugin, state PluginState, disable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok || e.plugin != plugin {
		return
	}
	e.state = state
	if disable {
		e.config.Enabled = false
	}
	r.rebuildLocked()
}

func (r *InMemoryPluginRegistry) mutate(name string, fn func(e *entry)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	fn(e)
	r.rebuildLocked()
	return nil
}

// orderedLocked returns the entries in registration order. Caller holds mu.
func (r *InMemoryPluginRegistry) orderedLocked() []*entry {
	out := make([]*entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// rebuildLocked recomputes hook chains and schemas. Caller holds mu.
func (r *InMemoryPluginRegistry) rebuildLocked() {
	ordered := r.orderedLocked()

	chains := make(map[HookName][]Plugin, len(AllHooks()))
	for _, hook := range AllHooks() {
		var members []*entry
		for _, e := range ordered {
			if !e.runnable() || !e.desc.HasHook(hook) {
				continue
			}
			members = append(members, e)
		}
		sort.SliceStable(members, func(i, j int) bool {
			return members[i].config.Priority > members[j].config.Priority
		})
		chain := make([]Plugin, len(members))
		for i, e := range members {
			chain[i] = e.plugin
		}
		chains[hook] = chain
	}

	r.snap.Store(&snapshot{
		chains:  chains,
		schemas: resolveSchemas(ordered),
	})
}

// warningsForLocked returns the merge warnings caused by plugin. Caller holds mu.
func (r *InMemoryPluginRegistry) warningsForLocked(plugin string) []SchemaWarning {
	var out []SchemaWarning
	snap := r.snap.Load()
	kinds := make([]types.RecordKind, 0, len(snap.schemas))
	for kind := range snap.schemas {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, kind := range kinds {
		for _, w := range snap.schemas[kind].Warnings {
			if w.Plugin == plugin {
				out = append(out, w)
			}
		}
	}
	return out
}
