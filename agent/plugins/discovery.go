package plugins

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/aicli/types"
)

// manifestNames are the files looked up inside a plugin subdirectory.
var manifestNames = []string{"plugin.yaml", "plugin.yml", "plugin.json"}

// Manifest describes a declarative plugin found in the discovery directory.
type Manifest struct {
	Name        string                            `json:"name" yaml:"name"`
	Version     string                            `json:"version" yaml:"version"`
	Description string                            `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled     *bool                             `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Priority    *int                              `json:"priority,omitempty" yaml:"priority,omitempty"`
	Settings    map[string]any                    `json:"settings,omitempty" yaml:"settings,omitempty"`
	Extensions  map[types.RecordKind]types.Schema `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	Hooks       map[HookName]HookAction           `json:"hooks,omitempty" yaml:"hooks,omitempty"`

	// Path is the file the manifest was read from.
	Path string `json:"-" yaml:"-"`
}

// HookAction lists the field edits a declarative plugin makes in one hook.
// Only plugin fields can be edited; base fields are left to code plugins.
type HookAction struct {
	// Set assigns fields unconditionally.
	Set map[string]any `json:"set,omitempty" yaml:"set,omitempty"`
	// Defaults assigns fields that are absent.
	Defaults map[string]any `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	// Append appends values to list fields, creating them when absent.
	Append map[string]any `json:"append,omitempty" yaml:"append,omitempty"`
}

func (a HookAction) fields() []string {
	var names []string
	for _, m := range []map[string]any{a.Set, a.Defaults, a.Append} {
		for name := range m {
			names = append(names, name)
		}
	}
	return names
}

// Validate checks the manifest and fills in the default version.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("manifest %s: name is required", m.Path)
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}
	for hook, action := range m.Hooks {
		if !hook.Valid() {
			return fmt.Errorf("manifest %s: %w: %q", m.Path, ErrUnknownHook, hook)
		}
		base := types.BaseSchema(hook.RecordKind())
		for _, name := range action.fields() {
			if _, ok := base[name]; ok {
				return fmt.Errorf("manifest %s: hook %s edits base field %q", m.Path, hook, name)
			}
		}
	}
	return nil
}

// Config returns the plugin configuration declared by the manifest.
func (m *Manifest) Config() PluginConfig {
	cfg := DefaultPluginConfig()
	if m.Enabled != nil {
		cfg.Enabled = *m.Enabled
	}
	if m.Priority != nil {
		cfg.Priority = *m.Priority
	}
	if len(m.Settings) > 0 {
		cfg.Settings = types.Extensions(m.Settings).Clone()
	}
	return cfg
}

// LoadManifest reads a YAML or JSON manifest.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	if err := decodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", path, err)
	}
	m.Path = path
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ScanDirectory loads the manifests in dir: *.yaml, *.yml and *.json files,
// and plugin.yaml|yml|json inside subdirectories. Names starting with "_"
// or "." are skipped. A missing directory yields no manifests. Malformed
// manifests are skipped and reported in the returned error.
func ScanDirectory(dir string) ([]*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read plugin dir %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var (
		manifests []*Manifest
		errs      []error
	)
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
			continue
		}

		path := filepath.Join(dir, name)
		if entry.IsDir() {
			path = findManifest(path)
			if path == "" {
				continue
			}
		} else if detectFormat(name) == "" {
			continue
		}

		m, err := LoadManifest(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		manifests = append(manifests, m)
	}
	return manifests, errors.Join(errs...)
}

func findManifest(dir string) string {
	for _, name := range manifestNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Discover scans the discovery directory and registers a DeclarativePlugin
// per manifest. It returns the names registered. Manifests that cannot be
// loaded or registered are logged, skipped and reported in the error.
func (m *Manager) Discover(ctx context.Context) ([]string, error) {
	if m.discoveryDir == "" {
		return nil, nil
	}

	manifests, scanErr := ScanDirectory(m.discoveryDir)
	if scanErr != nil {
		m.logger.Warn("plugin manifests skipped",
			zap.String("dir", m.discoveryDir),
			zap.Error(scanErr))
	}

	errs := []error{scanErr}
	var names []string
	for _, mf := range manifests {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		p := NewDeclarativePlugin(mf)
		if err := m.Register(p, WithConfig(mf.Config())); err != nil {
			m.logger.Warn("discovered plugin not registered",
				zap.String("name", mf.Name),
				zap.String("path", mf.Path),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("register %s: %w", mf.Path, err))
			continue
		}
		names = append(names, mf.Name)
	}

	m.logger.Info("plugin discovery finished",
		zap.String("dir", m.discoveryDir),
		zap.Int("registered", len(names)))
	return names, errors.Join(errs...)
}
