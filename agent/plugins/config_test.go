package plugins

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigEntry_DecodeFlat(t *testing.T) {
	tests := []struct {
		name   string
		decode func(data string, v any) error
		data   string
	}{
		{
			name:   "yaml",
			decode: func(data string, v any) error { return yaml.Unmarshal([]byte(data), v) },
			data:   "enabled: false\npriority: 50\nttl: 3600\nsettings:\n  max_size: 10\n",
		},
		{
			name:   "json",
			decode: func(data string, v any) error { return json.Unmarshal([]byte(data), v) },
			data:   `{"enabled": false, "priority": 50, "ttl": 3600, "settings": {"max_size": 10}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e ConfigEntry
			require.NoError(t, tt.decode(tt.data, &e))
			require.NotNil(t, e.Enabled)
			require.NotNil(t, e.Priority)
			assert.False(t, *e.Enabled)
			assert.Equal(t, 50, *e.Priority)
			assert.EqualValues(t, 3600, e.Settings["ttl"])
			assert.EqualValues(t, 10, e.Settings["max_size"])
		})
	}
}

func TestConfigEntry_DecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "enabled not bool", data: `{"enabled": "yes"}`},
		{name: "priority not integral", data: `{"priority": 1.5}`},
		{name: "settings not mapping", data: `{"settings": [1, 2]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e ConfigEntry
			assert.Error(t, json.Unmarshal([]byte(tt.data), &e))
		})
	}
}

func TestConfigEntry_Apply(t *testing.T) {
	base := PluginConfig{Enabled: true, Priority: 5, Settings: map[string]any{"a": 1}}

	prio := 9
	out := ConfigEntry{Priority: &prio, Settings: map[string]any{"b": 2}}.Apply(base)
	assert.True(t, out.Enabled, "absent enabled keeps the default")
	assert.Equal(t, 9, out.Priority)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, out.Settings)
	assert.Equal(t, map[string]any{"a": 1}, base.Settings, "base is not modified")

	assert.Equal(t, base, ConfigEntry{}.Apply(base))
}

func TestConfigEntry_RoundTrip(t *testing.T) {
	entry := EntryFromConfig(PluginConfig{Enabled: false, Priority: 3, Settings: map[string]any{"log_file": "/tmp/x.log"}})

	data, err := json.Marshal(entry)
	require.NoError(t, err)
	assert.JSONEq(t, `{"enabled": false, "priority": 3, "log_file": "/tmp/x.log"}`, string(data))

	out, err := yaml.Marshal(entry)
	require.NoError(t, err)
	var back ConfigEntry
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, PluginConfig{Enabled: false, Priority: 3, Settings: map[string]any{"log_file": "/tmp/x.log"}}, back.Apply(DefaultPluginConfig()))
}
