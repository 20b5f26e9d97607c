// Copyright (c) DashScope Router Authors.
// Licensed under the MIT License.

/*
Package main 提供 dashscope-router 服务端程序入口。

# 概述

cmd/dashscope-router 组装配置、日志、遥测、DashScope 客户端与网关，
对外暴露 OpenAI 兼容的语音转写、语音合成、文生图与模型列表端点。

# 核心类型

  - Server      — 主服务器，管理 API 与 Metrics 双端口及优雅关闭
  - Middleware  — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、version、health、help
  - 中间件链：Recovery、RequestID（uuid）、SecurityHeaders、RequestLogger、
    Metrics、OTelTracing、UAWhitelist
  - 配置热重载：UA 白名单规则与默认 API Key 运行时生效
  - 定时 GC：按 memory.gc_interval_seconds 强制回收并归还空闲堆
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
