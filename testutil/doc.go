// Copyright 2026 AICLI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 aicli 测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 记录断言: AssertExtension / AssertNoExtension 检查插件扩展字段
  - 通用断言: AssertJSONEqual / AssertEventuallyTrue / AssertContains
  - 数据工具: MustJSON / MustParseJSON / WaitFor

# 子包

  - testutil/mocks: MockGenerator（模型服务客户端）与
    ScriptedPlugin（可编排钩子的插件）
*/
package testutil
