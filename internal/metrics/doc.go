// Copyright (c) DashScope Router Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖
入站 HTTP、上游 DashScope 调用、资源下载与阻塞调用工作池。

# 概述

Collector 使用 promauto 注册到默认 Registry，所有指标按 namespace 隔离，
由独立的 metrics 端口通过 promhttp 暴露。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，按 method/path/status 分组，
    状态码归类为 2xx/3xx/4xx/5xx；UA 白名单拦截计数。
  - 上游指标：按 modality/convention/model 统计调用次数与耗时（异步生图含轮询），
    以及按任务状态统计的轮询次数。
  - 资源下载：b64_json 与 TTS 音频下载的成功/失败计数与字节数分布。
  - 工作池：以 GaugeFunc 导出 worker、活跃、排队与拒绝数量。
*/
package metrics
