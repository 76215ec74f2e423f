/*
包 database 负责打开插件状态数据库，并通过 GORM 管理其连接池。

# 概述

Open 根据 config.DatabaseConfig 选择方言：postgres、mysql 或
纯 Go 实现的 sqlite，然后交由 PoolManager 设置连接上限与生命周期。
插件管理器的 GormStateStore 通过 PoolManager.DB() 读写 plugin_settings 表。

# 核心类型

  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB()、Ping()、
    GetStats()、Close()，可选后台健康检查。
  - PoolConfig：连接池配置。
  - PoolStats：友好格式的连接池统计信息。
*/
package database
