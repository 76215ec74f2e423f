/*
aicli 是插件系统的命令行入口。

它按配置装配插件管理器：状态存储（文件或数据库）、缓存插件后端
（内存或 Redis）、内置插件、插件目录中发现的声明式插件，以及
Prometheus 指标与 OpenTelemetry 链路追踪。

# 子命令

  - plugins list|enable|disable|priority|schema|watch：管理插件
  - agent modelfile|preview：查看钩子处理后的 Agent 配置与生成请求
  - version：显示版本信息
*/
package main
