// 版权所有 2024 AICLI Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖
插件钩子、插件生命周期、模型生成与插件缓存四个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制。所有指标按 namespace 隔离，NewCollectorWithRegistry
可以注册到独立的 Registry。

# 核心类型

  - Collector：指标收集器，同时实现 plugins.MetricsObserver、
    builtin.CacheObserver 与 llm.MetricsCollector。

# 主要能力

  - 钩子指标：调用次数与耗时，按 hook/plugin/status 分组。
  - 生命周期指标：init/shutdown 结果，按 phase/plugin/status 分组。
  - 生成指标：请求次数、耗时与 Token 用量，按 model 分组。
  - 缓存指标：命中与未命中计数，按 plugin 分组。
*/
package metrics
