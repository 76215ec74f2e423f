// 版权所有 2024 AICLI Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 定义与模型服务交互的 Generator 接口，并在其外层挂接插件钩子。

# 概述

本包不发起任何网络请求。模型服务客户端实现 Generator 接口，
HookedGenerator 在调用前后执行 generate_request、generate_response
与 chat_message 钩子，使插件能够为请求补充字段、命中缓存时短路、
并把 log_id、cache_key 等共享字段带到响应上。

# 核心类型

  - Generator：模型服务协作者，提供 Generate 与 Chat。
  - HookedGenerator：带钩子的 Generator 装饰器。
  - HookRunner：钩子执行接口，由 plugins.Manager 实现。
  - Chain / Middleware：围绕 Generate 调用的中间件链，
    内置日志、超时、panic 恢复与指标中间件。
*/
package llm
