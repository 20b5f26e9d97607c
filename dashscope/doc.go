// Copyright (c) DashScope Router Authors.
// Licensed under the MIT License.

/*
Package dashscope 是阿里云 DashScope 原生 REST 接口的最小客户端，
覆盖网关用到的两种调用约定。

# 调用约定

  - 同步多模态：POST /services/aigc/multimodal-generation/generation，
    用于 Qwen ASR（Transcribe）、Qwen TTS（Synthesize）与
    qwen-image 系列同步生图（GenerateImageSync）。
  - 异步任务：POST /services/aigc/text2image/image-synthesis
    （X-DashScope-Async: enable）提交，GET /tasks/{id} 轮询，
    由 GenerateImageAsync 封装为一次阻塞调用，轮询节奏由 rate.Limiter 控制。

# 错误

非 2xx 响应返回 *APIError（status、code、message、request_id），
错误体用 gjson 宽松解析；异步任务失败返回 *TaskError；
成功体缺少预期字段时返回包装 ErrMalformedResponse 的错误；
轮询超过 AsyncTimeout 返回包装 ErrTaskTimeout 的错误。
传输层错误原样包装返回。

每个响应都按调用约定解码到显式的结构体，没有按字段名猜测的分支。
API Key 由调用方逐请求传入。
*/
package dashscope
