// Package server 提供暴露插件 Prometheus 指标的 HTTP 服务器，
// 包括 /metrics 与 /healthz 两个路由，以及非阻塞启动和优雅关闭。
package server
