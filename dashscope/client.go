package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/dashscope-router/config"
	"github.com/BaSui01/dashscope-router/internal/pool"
	"github.com/BaSui01/dashscope-router/internal/tlsutil"
)

const (
	multimodalPath     = "/services/aigc/multimodal-generation/generation"
	imageSynthesisPath = "/services/aigc/text2image/image-synthesis"
	tasksPath          = "/tasks/"

	headerAsync = "X-DashScope-Async"

	// 单个 JSON 响应体上限，TTS 内联音频也在此范围内
	maxResponseBytes = 64 << 20
)

// Config 客户端配置
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	AsyncTimeout time.Duration
	PollInterval time.Duration
	AssetTimeout time.Duration
	UserAgent    string
}

// ConfigFrom 从全局配置构建客户端配置
func ConfigFrom(c config.DashScopeConfig) Config {
	return Config{
		BaseURL:      c.BaseURL,
		Timeout:      c.Timeout,
		AsyncTimeout: c.AsyncTimeout,
		PollInterval: c.PollInterval,
		AssetTimeout: c.AssetTimeout,
	}
}

// Recorder 接收轮询与下载观测，*metrics.Collector 满足该接口
type Recorder interface {
	RecordTaskPoll(taskStatus string)
	RecordAssetFetch(kind string, ok bool, size int)
}

type nopRecorder struct{}

func (nopRecorder) RecordTaskPoll(string)              {}
func (nopRecorder) RecordAssetFetch(string, bool, int) {}

// Option 客户端选项
type Option func(*Client)

// WithHTTPClient 替换访问 DashScope API 的 HTTP 客户端
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.api = hc }
}

// WithAssetClient 替换下载生成资源的 HTTP 客户端
func WithAssetClient(hc *http.Client) Option {
	return func(c *Client) { c.assets = hc }
}

// WithRecorder 设置指标记录器
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// Client DashScope REST 客户端。API Key 按请求传入，客户端本身不持有凭证。
type Client struct {
	cfg      Config
	api      *http.Client
	assets   *http.Client
	buffers  *pool.BufferPool
	recorder Recorder
	logger   *zap.Logger
}

// New 创建客户端
func New(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = config.DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.AsyncTimeout <= 0 {
		cfg.AsyncTimeout = 5 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.AssetTimeout <= 0 {
		cfg.AssetTimeout = 2 * time.Minute
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "dashscope-router"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:      cfg,
		api:      tlsutil.SecureHTTPClient(cfg.Timeout),
		assets:   tlsutil.SecureHTTPClient(cfg.AssetTimeout),
		buffers:  pool.NewBufferPool(32 << 10),
		recorder: nopRecorder{},
		logger:   logger.With(zap.String("component", "dashscope")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL 返回规范化后的 API 地址
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// BufferStats 返回下载缓冲池统计
func (c *Client) BufferStats() pool.BufferStats { return c.buffers.Stats() }

// =============================================================================
// 🔧 请求执行
// =============================================================================

func (c *Client) postJSON(ctx context.Context, apiKey, path string, body any, headers map[string]string, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.do(req, apiKey, out)
}

func (c *Client) getJSON(ctx context.Context, apiKey, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, apiKey, out)
}

// do 发送请求，非 2xx 返回 *APIError，成功体解码到 out
func (c *Client) do(req *http.Request, apiKey string, out any) error {
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.api.Do(req)
	if err != nil {
		return fmt.Errorf("dashscope %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	buf := c.buffers.Get()
	defer c.buffers.Put(buf)
	if _, err := buf.ReadFrom(io.LimitReader(resp.Body, maxResponseBytes)); err != nil {
		return fmt.Errorf("read dashscope response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeAPIError(resp.StatusCode, buf.Bytes())
		c.logger.Warn("dashscope returned error",
			zap.String("path", req.URL.Path),
			zap.Int("status", apiErr.StatusCode),
			zap.String("code", apiErr.Code),
			zap.String("request_id", apiErr.RequestID),
			zap.String("message", apiErr.Message))
		return apiErr
	}

	if err := json.Unmarshal(buf.Bytes(), out); err != nil {
		return malformed("decode %s response: %v", req.URL.Path, err)
	}
	return nil
}
