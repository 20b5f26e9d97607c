// Copyright (c) DashScope Router Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 OpenAI 兼容端点的 HTTP 处理器。

# 概述

每个处理器只负责 HTTP 层：解析凭证、调用 gateway 完成归一化、
调度与渲染，再把结果或错误写回客户端。业务语义全部在 gateway 包中。

# 核心类型

  - AudioHandler   — /v1/audio/transcriptions 与 /v1/audio/speech
  - ImageHandler   — /v1/images/generations
  - ModelsHandler  — /v1/models，构造时生成一次列表
  - HealthHandler  — /health、/healthz、/ready、/version
  - ResponseWriter — 捕获状态码与写出字节数，供中间件使用

# 处理顺序

凭证先于请求体解析：缺少 API Key 时直接返回 401，不读取上传内容。
所有失败都经 WriteError 转为 {"error": {...}} 信封，状态码由
gateway.MapError 决定。

# 默认 Key

KeySource 在每次请求时读取默认 Key，配置热加载后无需重建处理器。
*/
package handlers
