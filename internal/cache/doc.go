// 版权所有 2024 AICLI Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的缓存管理能力，作为内置 cache 插件的
共享响应存储后端。

# 核心类型

  - Manager：缓存管理器，持有 Redis 客户端，所有键带 KeyPrefix 命名空间，
    提供 Get/Set/Delete/Keys/Clear 等操作，以及 GetJSON/SetJSON 便捷方法。
  - Config：缓存配置，包含地址、密码、键前缀、默认 TTL、连接池大小
    与健康检查间隔。

# 主要能力

  - 命名空间隔离：Keys 与 Clear 只作用于 KeyPrefix 下的键。
  - 健康检查：后台定时 Ping，Close 后退出。
  - 错误语义：ErrCacheMiss / ErrClosed 哨兵错误与 IsCacheMiss 判断函数。
*/
package cache
