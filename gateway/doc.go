// Copyright (c) DashScope Router Authors.
// Licensed under the MIT License.

/*
Package gateway 是网关的请求分发与响应规范化层。

# 数据流

	wire 请求 → Normalizer → 规范化请求（TranscriptionRequest / SpeechRequest / ImageRequest）
	         → Dispatcher（查询 CapabilityTable 选择调用约定）
	         → [Bridge：异步约定在有界工作池中阻塞执行]
	         → Result 或 *types.Error
	         → Renderer 或 MapError → wire 响应

# 能力表

CapabilityTable 在启动时构建一次，之后只读，可被并发读取。
模型与音色别名匹配不区分大小写，未登记的名字原样透传；
未登记的生图模型视为仅支持异步约定。

# 调用约定选择

仅异步的模型走异步约定；可同步的模型（无论是否也支持异步）走同步约定；
其余走异步约定。每个请求只尝试一次，失败不切换约定、不重试。

# 错误

请求校验失败在 Normalizer 中直接返回 400，不会到达 Dispatcher。
后端错误经 MapError 归一为 upstream_error：后端状态在 [400,599] 时透传，
其余（传输错误、响应无法解析、任务失败或超时）统一为 502。
*/
package gateway
