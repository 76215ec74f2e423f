package metrics

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/aicli/agent/plugins"
	"github.com/BaSui01/aicli/agent/plugins/builtin"
	"github.com/BaSui01/aicli/llm"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

var (
	_ plugins.MetricsObserver = (*Collector)(nil)
	_ builtin.CacheObserver   = (*Collector)(nil)
	_ llm.MetricsCollector    = (*Collector)(nil)
)

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.hookExecutionsTotal)
	assert.NotNil(t, collector.hookDuration)
	assert.NotNil(t, collector.lifecycleTotal)
	assert.NotNil(t, collector.cacheHits)
	assert.NotNil(t, collector.cacheMisses)
}

func TestCollector_ObserveHook(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), nil)

	collector.ObserveHook("generate_request", "logging", time.Millisecond, nil)
	collector.ObserveHook("generate_request", "logging", time.Millisecond, nil)
	collector.ObserveHook("generate_request", "cache", time.Millisecond, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.hookExecutionsTotal.WithLabelValues("generate_request", "logging", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.hookExecutionsTotal.WithLabelValues("generate_request", "cache", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.hookDuration))
}

func TestCollector_ObserveLifecycle(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), nil)

	collector.ObserveLifecycle("init", "cache", nil)
	collector.ObserveLifecycle("init", "broken", errors.New("x"))

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.lifecycleTotal.WithLabelValues("init", "broken", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.lifecycleTotal.WithLabelValues("init", "cache", "success")))
}

func TestCollector_Generate(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), nil)

	collector.RecordGenerate("llama3.2", time.Second, true)
	collector.RecordGenerate("llama3.2", time.Second, false)
	collector.RecordTokens("llama3.2", 30)
	collector.RecordTokens("llama3.2", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.generateRequestsTotal.WithLabelValues("llama3.2", "error")))
	assert.Equal(t, 30.0, testutil.ToFloat64(collector.tokensUsed.WithLabelValues("llama3.2")))
}

func TestCollector_ObserveCache(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), nil)

	collector.ObserveCache("cache", true)
	collector.ObserveCache("cache", false)
	collector.ObserveCache("cache", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.cacheHits.WithLabelValues("cache")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.cacheMisses.WithLabelValues("cache")))
}

func TestCollector_CustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := NewCollectorWithRegistry("aicli", reg, nil)
	collector.ObserveCache("cache", true)

	expected := `
# HELP aicli_plugin_cache_hits_total Total number of plugin cache hits
# TYPE aicli_plugin_cache_hits_total counter
aicli_plugin_cache_hits_total{plugin="cache"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "aicli_plugin_cache_hits_total"))
}

func TestCollector_Concurrent(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.ObserveHook("chat_message", "p", time.Microsecond, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50.0, testutil.ToFloat64(collector.hookExecutionsTotal.WithLabelValues("chat_message", "p", "success")))
}
