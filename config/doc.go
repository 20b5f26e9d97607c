// Copyright (c) DashScope Router Authors.
// Licensed under the MIT License.

/*
Package config 提供 dashscope-router 的配置管理功能。

# 加载顺序

默认值 → YAML 文件 → 兼容环境变量（PORT、DASHSCOPE_API_KEY 等）
→ DASHSCOPE_ROUTER_ 前缀环境变量，最后经 validator 校验。
配置文件不存在时使用默认值。

# 热重载

HotReloadManager 通过 FileWatcher 轮询配置文件的修改时间，
变更后重新加载并通知订阅者。目前仅 UA 白名单规则在运行时生效，
其余字段需要重启进程。
*/
package config
