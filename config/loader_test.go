// 配置加载器与配置验证测试。
package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	// 不指定配置文件，应该返回默认值
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "llama3.2", cfg.Model.Name)
	assert.Equal(t, "file", cfg.Plugins.Store)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
model:
  name: "mistral"
  temperature: 0.2
  timeout: 30s

plugins:
  dir: "/opt/aicli/plugins"
  store: "database"
  builtins: ["logging"]
  cache_backend: "redis"

redis:
  addr: "redis:6379"
  key_prefix: "test:"

database:
  driver: "postgres"
  host: "db"
  port: 5433
  name: "aicli"

log:
  level: "debug"
  format: "json"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, "mistral", cfg.Model.Name)
	assert.InDelta(t, 0.2, cfg.Model.Temperature, 0.001)
	assert.Equal(t, 30*time.Second, cfg.Model.Timeout)
	assert.Equal(t, "/opt/aicli/plugins", cfg.Plugins.Dir)
	assert.Equal(t, "database", cfg.Plugins.Store)
	assert.Equal(t, []string{"logging"}, cfg.Plugins.Builtins)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "test:", cfg.Redis.KeyPrefix)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "debug", cfg.Log.Level)

	// 未指定的字段保留默认值
	assert.Equal(t, "http://localhost:11434", cfg.Model.BaseURL)
	assert.Equal(t, time.Hour, cfg.Redis.DefaultTTL)

	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("AICLI_MODEL_NAME", "phi3")
	t.Setenv("AICLI_MODEL_TIMEOUT", "45s")
	t.Setenv("AICLI_PLUGINS_BUILTINS", "cache, custom_params,")
	t.Setenv("AICLI_REDIS_DB", "3")
	t.Setenv("AICLI_TELEMETRY_ENABLED", "true")
	t.Setenv("AICLI_TELEMETRY_SAMPLE_RATE", "0.5")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "phi3", cfg.Model.Name)
	assert.Equal(t, 45*time.Second, cfg.Model.Timeout)
	assert.Equal(t, []string{"cache", "custom_params"}, cfg.Plugins.Builtins)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.InDelta(t, 0.5, cfg.Telemetry.SampleRate, 0.001)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("model:\n  name: from-yaml\n"), 0644))
	t.Setenv("AICLI_MODEL_NAME", "from-env")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Model.Name)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_LOG_LEVEL", "warn")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("AICLI_REDIS_DB", "not-a-number")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AICLI_REDIS_DB")
}

func TestLoader_WithValidator(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error { return errors.New("rejected") }).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")

	cfg, err := NewLoader().WithValidator((*Config).Validate).Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", cfg.Model.Name)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("model: [unclosed"), 0644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

// --- Validate 测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "empty model", modify: func(c *Config) { c.Model.Name = "" }, wantErr: "model.name"},
		{name: "temperature", modify: func(c *Config) { c.Model.Temperature = 3 }, wantErr: "temperature"},
		{name: "unknown store", modify: func(c *Config) { c.Plugins.Store = "etcd" }, wantErr: "plugins.store"},
		{name: "file store without path", modify: func(c *Config) { c.Plugins.ConfigPath = "" }, wantErr: "config_path"},
		{name: "database store", modify: func(c *Config) { c.Plugins.Store = "database" }},
		{name: "database store bad driver", modify: func(c *Config) {
			c.Plugins.Store = "database"
			c.Database.Driver = "oracle"
		}, wantErr: "oracle"},
		{name: "redis without addr", modify: func(c *Config) {
			c.Plugins.CacheBackend = "redis"
			c.Redis.Addr = ""
		}, wantErr: "redis.addr"},
		{name: "unknown cache backend", modify: func(c *Config) { c.Plugins.CacheBackend = "disk" }, wantErr: "cache_backend"},
		{name: "log format", modify: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
		{name: "sample rate", modify: func(c *Config) { c.Telemetry.SampleRate = 2 }, wantErr: "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name:     "postgres",
			config:   DatabaseConfig{Driver: "postgres", Host: "localhost", Port: 5432, User: "u", Password: "p", Name: "db", SSLMode: "disable"},
			expected: "host=localhost port=5432 user=u password=p dbname=db sslmode=disable",
		},
		{
			name:     "mysql",
			config:   DatabaseConfig{Driver: "mysql", Host: "localhost", Port: 3306, User: "u", Password: "p", Name: "db"},
			expected: "u:p@tcp(localhost:3306)/db?parseTime=true",
		},
		{
			name:     "sqlite",
			config:   DatabaseConfig{Driver: "sqlite", Name: "/tmp/aicli.db"},
			expected: "/tmp/aicli.db",
		},
		{
			name:     "unknown",
			config:   DatabaseConfig{Driver: "oracle"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

func TestMustLoad(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("log:\n  level: error\n"), 0644))
	assert.Equal(t, "error", MustLoad(configPath).Log.Level)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("log: [x"), 0644))
	assert.Panics(t, func() { MustLoad(bad) })
}
