// Copyright (c) DashScope Router Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 dashscope-router 测试的共享工具和辅助函数。

# 概述

testutil 包为 handlers、cmd 等包的端到端测试提供统一的上游替身，
避免各包重复搭建 httptest 服务器和手写 DashScope 响应体。

# 核心能力

  - 上下文辅助: TestContext / CancelledContext，自动注册 Cleanup
  - 异步等待: WaitFor 轮询等待条件满足
  - 数据工具: MustJSON / DecodeJSONBody

# 子包

  - testutil/mocks: DashScope 替身服务器，按端点注册响应，
    支持异步任务状态序列、资源下载与请求记录
  - testutil/fixtures: DashScope 响应体工厂（ASR 文本、TTS 音频、
    同步生图、任务状态、错误体）

# 使用示例

	ds := mocks.NewDashScope(t).
		OnMultimodal(http.StatusOK, fixtures.ASRText("你好"))
	client := dashscope.New(dashscope.Config{BaseURL: ds.BaseURL()}, zap.NewNop())
*/
package testutil
