// =============================================================================
// 📦 aicli 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Model:     DefaultModelConfig(),
		Plugins:   DefaultPluginsConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// HomeDir 返回 aicli 的数据目录 (~/.ai-cli)
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".ai-cli")
}

// DefaultModelConfig 返回默认模型配置
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		BaseURL:     "http://localhost:11434",
		Name:        "llama3.2",
		Temperature: 0.7,
		Timeout:     2 * time.Minute,
	}
}

// DefaultPluginsConfig 返回默认插件配置
func DefaultPluginsConfig() PluginsConfig {
	dir := HomeDir()
	return PluginsConfig{
		Dir:          filepath.Join(dir, "plugins"),
		ConfigPath:   filepath.Join(dir, "plugins.json"),
		Store:        "file",
		Builtins:     []string{"logging", "cache", "custom_params"},
		CacheBackend: "memory",
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:       "localhost:6379",
		DB:         0,
		KeyPrefix:  "aicli:",
		DefaultTTL: time.Hour,
		PoolSize:   10,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Name:            filepath.Join(HomeDir(), "aicli.db"),
		SSLMode:         "disable",
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{"stderr"},
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:          false,
		OTLPEndpoint:     "localhost:4317",
		ServiceName:      "aicli",
		SampleRate:       0.1,
		MetricsNamespace: "aicli",
	}
}
