// Copyright (c) DashScope Router Authors.
// Licensed under the MIT License.

/*
Package uafilter 实现 User-Agent 白名单过滤。

规则为 shell 风格通配符（*、?、[...]），匹配前规则与 UA 均转为小写，
'*' 可以跨越 '/'，因此 "curl/*" 能匹配 "curl/8.4.0"。

规则快照通过 atomic.Pointer 发布，配置热重载时调用 Update 即可，
并发的 Allowed 调用总是看到完整的一组规则。
*/
package uafilter
