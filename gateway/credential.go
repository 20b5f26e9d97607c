package gateway

import (
	"strings"

	"github.com/BaSui01/dashscope-router/types"
)

const bearerPrefix = "Bearer "

// ResolveAPIKey 从 Authorization 头解析 DashScope API Key。
//
//   - "Bearer <key>" 取 key；其他非空值整体作为 key
//   - 头缺失或解析后为空时使用 fallback（配置的默认 key）
//   - 仍为空返回 401 permission_error / missing_api_key
func ResolveAPIKey(header, fallback string) (string, error) {
	key := strings.TrimSpace(header)
	if strings.HasPrefix(header, bearerPrefix) {
		key = strings.TrimSpace(header[len(bearerPrefix):])
	}
	if key == "" {
		key = strings.TrimSpace(fallback)
	}
	if key == "" {
		return "", types.NewError(types.ErrPermission,
			"Missing API key. Provide it via the Authorization header or configure a default key.").
			WithCode(types.CodeMissingAPIKey).
			WithHTTPStatus(401)
	}
	return key, nil
}
