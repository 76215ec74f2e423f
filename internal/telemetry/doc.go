// Package telemetry 初始化 OpenTelemetry 的 trace 与 metric 提供者，
// 供插件管理器为每次钩子调用创建 span。
package telemetry
