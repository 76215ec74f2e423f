// Package config 提供 aicli 的配置管理功能。
//
// 包含配置加载（默认值 → YAML 文件 → 环境变量）、配置验证，
// 以及插件配置文件的变更监听。
package config
