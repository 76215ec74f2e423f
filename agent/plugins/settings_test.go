package plugins

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
		wantErr bool
	}{
		{
			name: "yaml",
			file: "plugins.yaml",
			content: `
logging:
  enabled: true
  priority: 100
  log_file: /tmp/aicli.log
cache:
  enabled: false
`,
		},
		{
			name:    "json",
			file:    "plugins.json",
			content: `{"logging": {"enabled": true, "priority": 100, "log_file": "/tmp/aicli.log"}, "cache": {"enabled": false}}`,
		},
		{name: "unknown extension", file: "plugins.toml", content: "x = 1", wantErr: true},
		{name: "malformed", file: "bad.json", content: "{", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.content)
			entries, err := LoadConfigFile(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, entries, 2)
			assert.True(t, *entries["logging"].Enabled)
			assert.Equal(t, 100, *entries["logging"].Priority)
			assert.Equal(t, "/tmp/aicli.log", entries["logging"].Settings["log_file"])
			assert.False(t, *entries["cache"].Enabled)
			assert.Nil(t, entries["cache"].Priority)
		})
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteConfigFile_Atomic(t *testing.T) {
	for _, name := range []string{"nested/plugins.yaml", "nested/plugins.json"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, name)
			enabled, prio := true, 7
			require.NoError(t, WriteConfigFile(path, map[string]ConfigEntry{
				"p": {Enabled: &enabled, Priority: &prio, Settings: map[string]any{"k": "v"}},
			}))

			files, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			assert.Len(t, files, 1, "no temp files left behind")

			entries, err := LoadConfigFile(path)
			require.NoError(t, err)
			assert.Equal(t, 7, *entries["p"].Priority)
			assert.Equal(t, "v", entries["p"].Settings["k"])
		})
	}

	assert.Error(t, WriteConfigFile(filepath.Join(t.TempDir(), "plugins.ini"), nil))
}
