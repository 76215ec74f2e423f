package aicli_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/aicli"
	"github.com/BaSui01/aicli/agent/plugins"
	"github.com/BaSui01/aicli/agent/plugins/builtin"
	"github.com/BaSui01/aicli/config"
	"github.com/BaSui01/aicli/llm"
	"github.com/BaSui01/aicli/testutil"
	"github.com/BaSui01/aicli/testutil/mocks"
	"github.com/BaSui01/aicli/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Plugins.Dir = filepath.Join(dir, "plugins")
	cfg.Plugins.ConfigPath = filepath.Join(dir, "plugins.yaml")
	cfg.Database.Name = filepath.Join(dir, "aicli.db")
	return cfg
}

func openRuntime(t *testing.T, cfg *config.Config) *aicli.Runtime {
	t.Helper()
	rt, err := aicli.Open(testutil.TestContext(t), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestOpen_RegistersBuiltinsAndManifests(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Plugins.Dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Plugins.Dir, "seen.json"),
		[]byte(`{"name": "seen", "hooks": {"chat_message": {"set": {"seen": true}}}}`), 0o644))

	rt := openRuntime(t, cfg)

	var names []string
	for _, info := range rt.Manager.List() {
		names = append(names, info.Descriptor.Name)
	}
	assert.Equal(t, []string{builtin.LoggingName, builtin.CacheName, builtin.CustomParamsName, "seen"}, names)
}

func TestOpen_AppliesStoredConfig(t *testing.T) {
	cfg := testConfig(t)
	disabled := false
	require.NoError(t, plugins.WriteConfigFile(cfg.Plugins.ConfigPath, map[string]plugins.ConfigEntry{
		builtin.CacheName: {Enabled: &disabled},
	}))

	rt := openRuntime(t, cfg)
	p, err := rt.Manager.Registry().Info(builtin.CacheName)
	require.NoError(t, err)
	assert.False(t, p.Config.Enabled)
}

func TestOpen_UnknownBuiltin(t *testing.T) {
	cfg := testConfig(t)
	cfg.Plugins.Builtins = []string{"logging", "nope"}

	rt, err := aicli.Open(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Nil(t, rt)
}

func TestOpen_DatabaseStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Plugins.Store = "database"

	rt := openRuntime(t, cfg)
	require.NoError(t, rt.Manager.SetPriority(context.Background(), builtin.LoggingName, 7))
	require.NoError(t, rt.Close(context.Background()))

	reopened := openRuntime(t, cfg)
	info, err := reopened.Manager.Registry().Info(builtin.LoggingName)
	require.NoError(t, err)
	assert.Equal(t, 7, info.Config.Priority)
}

func TestRuntime_HookedGeneratorEndToEnd(t *testing.T) {
	for _, backend := range []string{"memory", "redis"} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Plugins.CacheBackend = backend
			if backend == "redis" {
				cfg.Redis.Addr = miniredis.RunT(t).Addr()
			}

			rt := openRuntime(t, cfg)
			ctx := testutil.TestContext(t)
			rt.Start(ctx)

			mock := mocks.NewMockGenerator().WithResponse("four")
			gen := llm.NewHookedGenerator(mock, rt.Manager,
				llm.WithMiddleware(llm.MetricsMiddleware(rt.Metrics)))

			req := &types.GenerateRequest{Model: "llama3.2", Prompt: "2+2?"}
			first, err := gen.Generate(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, "four", first.Response)
			testutil.AssertExtension(t, first, builtin.FromCacheField, false)

			second, err := gen.Generate(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, "four", second.Response)
			testutil.AssertExtension(t, second, builtin.FromCacheField, true)

			assert.Equal(t, 1, mock.CallCount())
			ns := cfg.Telemetry.MetricsNamespace
			assert.Equal(t, 1.0, counterValue(t, rt.Registry, ns+"_plugin_cache_hits_total"))
			assert.Equal(t, 1.0, counterValue(t, rt.Registry, ns+"_plugin_cache_misses_total"))
			assert.Equal(t, 1.0, counterValue(t, rt.Registry, ns+"_generate_requests_total"))
			assert.Positive(t, counterValue(t, rt.Registry, ns+"_plugin_hook_executions_total"))
		})
	}
}

func TestRuntime_CloseTwice(t *testing.T) {
	rt := openRuntime(t, testConfig(t))
	rt.Start(context.Background())
	assert.NoError(t, rt.Close(context.Background()))
	assert.NoError(t, rt.Close(context.Background()))
}
