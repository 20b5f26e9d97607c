// Copyright (c) DashScope Router Authors.
// Licensed under the MIT License.

/*
Package telemetry 封装 OpenTelemetry SDK 初始化。

Init 总是注册 W3C TraceContext/Baggage 传播器，使客户端传入的
traceparent 能贯穿 HTTP 中间件、Dispatcher 与 Bridge。启用后创建
OTLP gRPC trace/metric 导出器并替换全局 Provider；禁用时保持 noop，
不连接任何外部服务。

Tracer / Meter 以 InstrumentationName 为作用域，供各包统一使用。
*/
package telemetry
