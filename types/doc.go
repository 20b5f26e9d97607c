// Copyright (c) DashScope Router Authors.
// Licensed under the MIT License.

/*
Package types 提供 dashscope-router 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 gateway、dashscope、
api 等上层模块提供统一的错误契约，以避免循环依赖。

# 核心类型

  - Error / ErrorType — 结构化错误体系，含 HTTP 状态码、错误码、Provider 标记
  - ErrorEnvelope     — OpenAI 兼容的错误响应体 {"error": {...}}

# 主要能力

  - 错误工具链：AsError / GetErrorType，兼容 errors.As 与 %w 包装
  - 常用错误构造：NewInvalidRequestError / NewUpstreamError
  - 线上表示：Error.Envelope 只输出 message/type/code，绝不暴露 Cause
*/
package types
