package plugins

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/aicli/types"
)

// PluginConfig is the runtime configuration of a registered plugin.
type PluginConfig struct {
	Enabled  bool           `json:"enabled" yaml:"enabled"`
	Priority int            `json:"priority" yaml:"priority"`
	Settings map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// DefaultPluginConfig returns an enabled configuration with priority 0.
func DefaultPluginConfig() PluginConfig {
	return PluginConfig{Enabled: true}
}

// Clone returns a copy whose settings can be modified independently.
func (c PluginConfig) Clone() PluginConfig {
	if c.Settings != nil {
		c.Settings = types.Extensions(c.Settings).Clone()
	}
	return c
}

// ConfigEntry is one plugin's entry in a configuration source.
// Absent enabled/priority keys leave the programmatic defaults untouched.
//
// On disk an entry is a flat mapping:
//
//	cache:
//	  enabled: true
//	  priority: 50
//	  ttl: 3600
//
// Keys other than enabled, priority and settings are plugin settings.
type ConfigEntry struct {
	Enabled  *bool
	Priority *int
	Settings map[string]any
}

// EntryFromConfig converts a runtime configuration to a storable entry.
func EntryFromConfig(c PluginConfig) ConfigEntry {
	enabled, priority := c.Enabled, c.Priority
	return ConfigEntry{
		Enabled:  &enabled,
		Priority: &priority,
		Settings: c.Clone().Settings,
	}
}

// Apply overlays the entry on base.
func (e ConfigEntry) Apply(base PluginConfig) PluginConfig {
	out := base.Clone()
	if e.Enabled != nil {
		out.Enabled = *e.Enabled
	}
	if e.Priority != nil {
		out.Priority = *e.Priority
	}
	if len(e.Settings) > 0 {
		if out.Settings == nil {
			out.Settings = make(map[string]any, len(e.Settings))
		}
		for k, v := range types.Extensions(e.Settings).Clone() {
			out.Settings[k] = v
		}
	}
	return out
}

func (e *ConfigEntry) fromMap(m map[string]any) error {
	*e = ConfigEntry{}
	for key, v := range m {
		switch key {
		case "enabled":
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("enabled: expected bool, got %T", v)
			}
			e.Enabled = &b
		case "priority":
			n, err := types.FieldInt.Normalize(v)
			if err != nil {
				return fmt.Errorf("priority: %w", err)
			}
			p := n.(int)
			e.Priority = &p
		case "settings":
			nested, ok := v.(map[string]any)
			if !ok {
				return fmt.Errorf("settings: expected mapping, got %T", v)
			}
			for k, sv := range nested {
				e.setSetting(k, sv)
			}
		default:
			e.setSetting(key, v)
		}
	}
	return nil
}

func (e *ConfigEntry) setSetting(key string, v any) {
	if e.Settings == nil {
		e.Settings = make(map[string]any)
	}
	e.Settings[key] = v
}

func (e ConfigEntry) toMap() map[string]any {
	m := make(map[string]any, len(e.Settings)+2)
	for k, v := range e.Settings {
		m[k] = v
	}
	if e.Enabled != nil {
		m["enabled"] = *e.Enabled
	}
	if e.Priority != nil {
		m["priority"] = *e.Priority
	}
	return m
}

// UnmarshalJSON decodes a flat entry.
func (e *ConfigEntry) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	return e.fromMap(m)
}

// MarshalJSON encodes the entry as a flat mapping.
func (e ConfigEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.toMap())
}

// UnmarshalYAML decodes a flat entry.
func (e *ConfigEntry) UnmarshalYAML(node *yaml.Node) error {
	var m map[string]any
	if err := node.Decode(&m); err != nil {
		return err
	}
	return e.fromMap(m)
}

// MarshalYAML encodes the entry as a flat mapping.
func (e ConfigEntry) MarshalYAML() (any, error) {
	return e.toMap(), nil
}
