package plugins

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// InitializeAll initializes every enabled plugin that is not initialized yet,
// in registration order. Settings are delivered to Configurable plugins
// first. A plugin whose initialization fails is disabled and reported in the
// returned error as a *LifecycleError; the other plugins are unaffected.
// FailedPlugins lists the names in the aggregate.
func (m *Manager) InitializeAll(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.logger.Info("initializing all plugins")

	var errs []error
	count := 0
	for _, info := range m.registry.List() {
		if !info.Config.Enabled {
			continue
		}
		if info.State != PluginStateRegistered && info.State != PluginStateShutdown {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("initialize plugins: %w", err))
			break
		}

		name := info.Descriptor.Name
		if err := initPlugin(ctx, info); err != nil {
			lerr := &LifecycleError{Plugin: name, Phase: PhaseInit, Err: err}
			m.registry.setState(name, info.Plugin, PluginStateFailed, true)
			m.observer.ObserveLifecycle(PhaseInit, name, lerr)
			m.logger.Error("plugin init failed, plugin disabled",
				zap.String("name", name),
				zap.Error(err))
			errs = append(errs, lerr)
			continue
		}

		m.registry.setState(name, info.Plugin, PluginStateInitialized, false)
		m.initOrder = append(m.initOrder, initialized{name: name, plugin: info.Plugin})
		m.observer.ObserveLifecycle(PhaseInit, name, nil)
		m.logger.Info("plugin initialized", zap.String("name", name))
		count++
	}

	m.logger.Info("plugin initialization finished",
		zap.Int("initialized", count),
		zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}

// ShutdownAll shuts down the initialized plugins in reverse initialization
// order. Every plugin is attempted; failures are returned together.
func (m *Manager) ShutdownAll(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.logger.Info("shutting down all plugins")

	var errs []error
	for i := len(m.initOrder) - 1; i >= 0; i-- {
		rec := m.initOrder[i]
		info, err := m.registry.Info(rec.name)
		if err != nil || info.Plugin != rec.plugin || info.State != PluginStateInitialized {
			continue
		}

		if err := shutdownPlugin(ctx, rec.plugin); err != nil {
			lerr := &LifecycleError{Plugin: rec.name, Phase: PhaseShutdown, Err: err}
			m.registry.setState(rec.name, rec.plugin, PluginStateFailed, false)
			m.observer.ObserveLifecycle(PhaseShutdown, rec.name, lerr)
			m.logger.Error("plugin shutdown failed",
				zap.String("name", rec.name),
				zap.Error(err))
			errs = append(errs, lerr)
			continue
		}

		m.registry.setState(rec.name, rec.plugin, PluginStateShutdown, false)
		m.observer.ObserveLifecycle(PhaseShutdown, rec.name, nil)
		m.logger.Info("plugin shut down", zap.String("name", rec.name))
	}
	m.initOrder = nil

	m.logger.Info("all plugins shut down", zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}

func initPlugin(ctx context.Context, info PluginInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if c, ok := info.Plugin.(Configurable); ok {
		if err := c.Configure(info.Config.Settings); err != nil {
			return fmt.Errorf("configure: %w", err)
		}
	}
	return info.Plugin.Init(ctx)
}

func shutdownPlugin(ctx context.Context, p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.Shutdown(ctx)
}
