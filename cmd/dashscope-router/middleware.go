package main

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/dashscope-router/api/handlers"
	"github.com/BaSui01/dashscope-router/internal/ctxkeys"
	"github.com/BaSui01/dashscope-router/internal/metrics"
	"github.com/BaSui01/dashscope-router/internal/telemetry"
	"github.com/BaSui01/dashscope-router/internal/uafilter"
	"github.com/BaSui01/dashscope-router/types"
)

const headerRequestID = "X-Request-ID"

// Middleware 类型定义
type Middleware func(http.Handler) http.Handler

// Chain 将多个中间件串联，第一个位于最外层
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Recovery panic 恢复中间件
func Recovery(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered",
						zap.Any("error", rec),
						zap.String("path", r.URL.Path),
						zap.ByteString("stack", debug.Stack()))
					handlers.WriteErrorMessage(w, http.StatusInternalServerError,
						types.ErrUpstream, types.CodeInternal, "internal server error", nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID 为每个请求分配 X-Request-ID（客户端已提供则保留），并写入 context
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(headerRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(headerRequestID, id)
			ctx := ctxkeys.WithRequestID(r.Context(), id)
			ctx = ctxkeys.WithUserAgent(ctx, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SecurityHeaders adds common security response headers to every request.
func SecurityHeaders() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger 请求日志中间件
func RequestLogger(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := handlers.NewResponseWriter(w)
			next.ServeHTTP(rw, r)

			id, _ := ctxkeys.RequestID(r.Context())
			ua, _ := ctxkeys.UserAgent(r.Context())
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.StatusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("user_agent", ua),
				zap.String("request_id", id),
			)
		})
	}
}

// =============================================================================
// MetricsMiddleware — records HTTP request metrics via metrics.Collector
// =============================================================================

// knownRoutes 作为指标 path 标签的取值集合，其余路径归入 "other"
var knownRoutes = map[string]struct{}{
	"/v1/models":               {},
	"/v1/audio/transcriptions": {},
	"/v1/audio/speech":         {},
	"/v1/images/generations":   {},
	"/health":                  {},
	"/healthz":                 {},
	"/ready":                   {},
	"/version":                 {},
}

// routeLabel keeps Prometheus label cardinality bounded.
func routeLabel(path string) string {
	if _, ok := knownRoutes[path]; ok {
		return path
	}
	return "other"
}

// MetricsMiddleware records HTTP request duration, status, and sizes via the
// provided metrics.Collector.
func MetricsMiddleware(collector *metrics.Collector) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := handlers.NewResponseWriter(w)

			next.ServeHTTP(rw, r)

			requestSize := r.ContentLength
			if requestSize < 0 {
				requestSize = 0
			}
			collector.RecordHTTPRequest(
				r.Method,
				routeLabel(r.URL.Path),
				rw.StatusCode,
				time.Since(start),
				requestSize,
				rw.BytesWritten,
			)
		})
	}
}

// =============================================================================
// OTelTracing — OpenTelemetry HTTP tracing middleware
// =============================================================================

// OTelTracing creates a server span for each HTTP request, continuing any
// incoming trace context.
func OTelTracing() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := otel.Tracer(telemetry.InstrumentationName).Start(ctx,
				r.Method+" "+routeLabel(r.URL.Path),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
					attribute.String("user_agent.original", r.UserAgent()),
				),
			)
			defer span.End()

			rw := handlers.NewResponseWriter(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.response.status_code", rw.StatusCode))
			if rw.StatusCode >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", rw.StatusCode))
			}
		})
	}
}

// =============================================================================
// UAWhitelist — User-Agent 白名单
// =============================================================================

// UAWhitelist 拒绝不在白名单内的 User-Agent。规则由 filter 持有，热加载时原子替换。
func UAWhitelist(filter *uafilter.Filter, collector *metrics.Collector, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ua := r.UserAgent()
			if !filter.Allowed(ua) {
				logger.Warn("user agent rejected",
					zap.String("user_agent", ua),
					zap.String("remote_addr", r.RemoteAddr),
					zap.String("path", r.URL.Path))
				if collector != nil {
					collector.RecordUABlocked()
				}
				handlers.WriteErrorMessage(w, http.StatusForbidden,
					types.ErrPermission, types.CodeUABlocked, "Forbidden: User-Agent not allowed.", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NotFound 未匹配的请求返回统一错误信封。
// 兜底路由会吞掉方法不匹配的请求，已知路径在这里补回 405。
func NotFound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := knownRoutes[r.URL.Path]; ok {
			handlers.WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, types.CodeMethodNotAllowed,
				fmt.Sprintf("Method %s is not allowed for %s", r.Method, r.URL.Path), nil)
			return
		}
		handlers.WriteErrorMessage(w, http.StatusNotFound, types.ErrInvalidRequest, types.CodeNotFound,
			fmt.Sprintf("Unknown route: %s %s", r.Method, r.URL.Path), nil)
	}
}
