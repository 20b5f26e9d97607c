package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	userAgentKey contextKey = "user_agent"
)

// WithRequestID 设置请求 ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID 获取请求 ID
func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithUserAgent 设置客户端 User-Agent（用于日志关联）
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey, ua)
}

// UserAgent 获取客户端 User-Agent
func UserAgent(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userAgentKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
