// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，实现插件管理器的 MetricsObserver、
// 缓存插件的 CacheObserver 与生成中间件的 MetricsCollector
type Collector struct {
	// 钩子指标
	hookExecutionsTotal *prometheus.CounterVec
	hookDuration        *prometheus.HistogramVec

	// 生命周期指标
	lifecycleTotal *prometheus.CounterVec

	// 生成指标
	generateRequestsTotal *prometheus.CounterVec
	generateDuration      *prometheus.HistogramVec
	tokensUsed            *prometheus.CounterVec

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，注册到默认 Registry
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewCollectorWithRegistry 创建指标收集器，注册到指定 Registry
func NewCollectorWithRegistry(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 钩子指标
	c.hookExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_hook_executions_total",
			Help:      "Total number of plugin hook calls",
		},
		[]string{"hook", "plugin", "status"},
	)

	c.hookDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plugin_hook_duration_seconds",
			Help:      "Plugin hook call duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"hook", "plugin"},
	)

	// 生命周期指标
	c.lifecycleTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_lifecycle_total",
			Help:      "Total number of plugin init and shutdown calls",
		},
		[]string{"phase", "plugin", "status"},
	)

	// 生成指标
	c.generateRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generate_requests_total",
			Help:      "Total number of generation requests sent to the model server",
		},
		[]string{"model", "status"},
	)

	c.generateDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generate_duration_seconds",
			Help:      "Generation request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	c.tokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_used_total",
			Help:      "Total number of prompt and generated tokens",
		},
		[]string{"model"},
	)

	// 缓存指标
	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_cache_hits_total",
			Help:      "Total number of plugin cache hits",
		},
		[]string{"plugin"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_cache_misses_total",
			Help:      "Total number of plugin cache misses",
		},
		[]string{"plugin"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🔌 插件指标记录
// =============================================================================

// ObserveHook 记录一次插件钩子调用
func (c *Collector) ObserveHook(hook, plugin string, duration time.Duration, err error) {
	c.hookExecutionsTotal.WithLabelValues(hook, plugin, status(err)).Inc()
	c.hookDuration.WithLabelValues(hook, plugin).Observe(duration.Seconds())
}

// ObserveLifecycle 记录一次插件初始化或关闭
func (c *Collector) ObserveLifecycle(phase, plugin string, err error) {
	c.lifecycleTotal.WithLabelValues(phase, plugin, status(err)).Inc()
}

// =============================================================================
// 🤖 生成指标记录
// =============================================================================

// RecordGenerate 记录一次生成请求
func (c *Collector) RecordGenerate(model string, duration time.Duration, success bool) {
	s := "success"
	if !success {
		s = "error"
	}
	c.generateRequestsTotal.WithLabelValues(model, s).Inc()
	c.generateDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordTokens 记录 Token 使用量
func (c *Collector) RecordTokens(model string, tokens int) {
	if tokens > 0 {
		c.tokensUsed.WithLabelValues(model).Add(float64(tokens))
	}
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// ObserveCache 记录缓存命中或未命中
func (c *Collector) ObserveCache(plugin string, hit bool) {
	if hit {
		c.cacheHits.WithLabelValues(plugin).Inc()
		return
	}
	c.cacheMisses.WithLabelValues(plugin).Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
