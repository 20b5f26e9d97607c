// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/dashscope-router/internal/pool"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	namespace string

	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec
	uaBlockedTotal      prometheus.Counter

	// 上游 DashScope 指标
	upstreamRequestsTotal   *prometheus.CounterVec
	upstreamRequestDuration *prometheus.HistogramVec
	taskPollsTotal          *prometheus.CounterVec

	// 资源下载指标
	assetFetchTotal *prometheus.CounterVec
	assetFetchBytes *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		namespace: namespace,
		logger:    logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.uaBlockedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ua_blocked_total",
			Help:      "Total number of requests rejected by the User-Agent whitelist",
		},
	)

	// 上游指标
	c.upstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of DashScope calls",
		},
		[]string{"modality", "convention", "model", "status"},
	)

	c.upstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "DashScope call duration in seconds, including async polling",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"modality", "convention"},
	)

	c.taskPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "async_task_polls_total",
			Help:      "Total number of async task status polls by observed task status",
		},
		[]string{"task_status"},
	)

	// 资源下载指标
	c.assetFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_fetch_total",
			Help:      "Total number of generated asset downloads",
		},
		[]string{"kind", "status"},
	)

	c.assetFetchBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "asset_fetch_bytes",
			Help:      "Size of downloaded generated assets in bytes",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		},
		[]string{"kind"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// RecordUABlocked 记录被 UA 白名单拦截的请求
func (c *Collector) RecordUABlocked() {
	c.uaBlockedTotal.Inc()
}

// =============================================================================
// ☁️ 上游指标记录
// =============================================================================

// RecordUpstreamCall 记录一次上游调用。status 为上游 HTTP 状态码，
// 传输层失败时为 0。
func (c *Collector) RecordUpstreamCall(modality, convention, model string, status int, duration time.Duration) {
	c.upstreamRequestsTotal.WithLabelValues(modality, convention, model, statusCode(status)).Inc()
	c.upstreamRequestDuration.WithLabelValues(modality, convention).Observe(duration.Seconds())
}

// RecordTaskPoll 记录一次异步任务轮询
func (c *Collector) RecordTaskPoll(taskStatus string) {
	c.taskPollsTotal.WithLabelValues(taskStatus).Inc()
}

// RecordAssetFetch 记录一次资源下载
func (c *Collector) RecordAssetFetch(kind string, ok bool, size int) {
	status := "success"
	if !ok {
		status = "error"
	}
	c.assetFetchTotal.WithLabelValues(kind, status).Inc()
	if ok {
		c.assetFetchBytes.WithLabelValues(kind).Observe(float64(size))
	}
}

// =============================================================================
// 🌉 工作池指标
// =============================================================================

// RegisterPoolStats 以 GaugeFunc 形式导出工作池状态，每个 namespace 只能调用一次
func (c *Collector) RegisterPoolStats(name string, stats func() pool.Stats) {
	gauge := func(metric, help string, read func(pool.Stats) float64) {
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   c.namespace,
			Subsystem:   "bridge",
			Name:        metric,
			Help:        help,
			ConstLabels: prometheus.Labels{"pool": name},
		}, func() float64 { return read(stats()) })
	}

	gauge("workers", "Number of live bridge workers", func(s pool.Stats) float64 { return float64(s.Workers) })
	gauge("active", "Number of bridge tasks currently executing", func(s pool.Stats) float64 { return float64(s.Active) })
	gauge("queued", "Number of bridge tasks waiting in the queue", func(s pool.Stats) float64 { return float64(s.Queued) })
	gauge("rejected", "Total number of bridge submissions rejected as saturated", func(s pool.Stats) float64 { return float64(s.Rejected) })
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
