package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/dashscope-router/gateway"
	"github.com/BaSui01/dashscope-router/internal/ctxkeys"
	"github.com/BaSui01/dashscope-router/types"
)

// =============================================================================
// 🎯 响应辅助函数
// =============================================================================

// WriteJSON 写入 JSON 响应
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)

	// 响应头已写出，编码失败只能放弃
	_ = json.NewEncoder(w).Encode(data)
}

// WritePayload 写入渲染好的响应体
func WritePayload(w http.ResponseWriter, p *gateway.Payload) {
	for k, v := range p.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", p.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(p.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(p.Body)
}

// WriteError 把任意错误写成统一错误信封。完整原因只进日志，不进响应体。
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	e := gateway.MapError(err)

	if logger != nil {
		fields := []zap.Field{
			zap.String("type", string(e.Type)),
			zap.String("code", e.Code),
			zap.String("message", e.Message),
			zap.Int("status", e.HTTPStatus),
			zap.Error(e.Cause),
		}
		if r != nil {
			if id, ok := ctxkeys.RequestID(r.Context()); ok {
				fields = append(fields, zap.String("request_id", id))
			}
			fields = append(fields, zap.String("path", r.URL.Path))
		}
		if e.HTTPStatus >= http.StatusInternalServerError {
			logger.Error("API error", fields...)
		} else {
			logger.Warn("API error", fields...)
		}
	}

	WriteJSON(w, e.HTTPStatus, e.Envelope())
}

// WriteErrorMessage 写入简单错误消息
func WriteErrorMessage(w http.ResponseWriter, status int, typ types.ErrorType, code, message string, logger *zap.Logger) {
	WriteError(w, nil, types.NewError(typ, message).WithCode(code).WithHTTPStatus(status), logger)
}

// =============================================================================
// 📊 响应包装器（用于捕获状态码）
// =============================================================================

// ResponseWriter 包装 http.ResponseWriter 以捕获状态码与写出字节数
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode   int
	BytesWritten int64
	Written      bool
}

// NewResponseWriter 创建新的 ResponseWriter
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		ResponseWriter: w,
		StatusCode:     http.StatusOK,
	}
}

// WriteHeader 重写 WriteHeader 以捕获状态码
func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.Written {
		rw.StatusCode = code
		rw.Written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

// Write 重写 Write 以标记已写入
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.BytesWritten += int64(n)
	return n, err
}

// Unwrap 供 http.ResponseController 访问底层 writer
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
