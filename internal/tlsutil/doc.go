// Package tlsutil 为访问 DashScope 与资源下载的出站 HTTP 客户端
// 提供安全加固的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件）与连接池参数。
package tlsutil
