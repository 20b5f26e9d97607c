// Copyright (c) DashScope Router Authors.
// Licensed under the MIT License.

/*
包 server 提供 HTTP 服务器生命周期管理，支持非阻塞启动、
优雅关闭与系统信号监听。

# 核心类型

  - Manager：封装 net/http.Server 与 net.Listener，提供
    Start/Shutdown/WaitForShutdown 等生命周期方法。
    API 端口与 metrics 端口各使用一个 Manager。
  - Config：监听地址、读写与空闲超时、最大请求头大小与优雅关闭超时。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务，
    Addr 返回实际监听地址（支持 ":0" 随机端口）。
  - 优雅关闭：Shutdown 在配置的超时内排空请求，重复调用无副作用。
  - 退出等待：WaitForShutdown 监听 SIGINT/SIGTERM、ctx 取消与服务异常。
*/
package server
