// Copyright (c) AICLI Authors.
// Licensed under the MIT License.

/*
Package types 提供 aicli 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 agent/plugins、llm、
cmd 等上层模块提供统一的类型契约。

# 核心类型

  - Record / Extensible：可扩展记录，固定基础字段 + 插件字段侧表（Extensions）
  - Schema / FieldSpec：字段声明（类型、默认值、描述），BaseSchema 给出各记录的基础字段
  - AgentConfig        ：Agent 配置记录（agent_init 钩子），可渲染 Modelfile
  - GenerateRequest    ：生成请求记录（generate_request 钩子）
  - GenerateResponse   ：生成响应记录（generate_response 钩子）
  - ChatMessage        ：对话消息记录（chat_message 钩子）
  - Error / ErrorCode  ：结构化错误体系，含插件相关错误码

# 主要能力

  - 未知字段在 JSON 解码时保留为扩展字段，不会被拒绝
  - 类型化访问器：Extensions.String / Int / Float / Bool / Map / List
  - Context 传播：WithTraceID / WithSessionID
*/
package types
