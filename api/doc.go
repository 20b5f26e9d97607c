// Copyright (c) DashScope Router Authors.
// Licensed under the MIT License.

// Package api 定义 dashscope-router 对外暴露的 OpenAI 兼容 wire 类型。
//
// # API Overview
//
// 网关提供以下端点：
//   - GET  /v1/models                 模型列表（后端模型与对外别名）
//   - POST /v1/audio/transcriptions   语音转写（multipart）
//   - POST /v1/audio/speech           语音合成（JSON / 表单）
//   - POST /v1/images/generations     文生图（JSON / 表单）
//   - GET  /health, /healthz          健康检查
//   - GET  /version                   版本信息
//
// # Authentication
//
// 请求通过 Authorization 头携带 DashScope API Key：
//
//	Authorization: Bearer sk-xxx
//
// 未携带时使用服务端配置的默认 Key。
//
// # Errors
//
// 所有错误使用统一信封：
//
//	{"error": {"message": "...", "type": "invalid_request_error", "code": "..."}}
//
// 信封类型定义在 types 包（types.ErrorEnvelope）。
package api
