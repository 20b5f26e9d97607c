package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/dashscope-router/api"
	"github.com/BaSui01/dashscope-router/internal/pool"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// HealthHandler 健康检查处理器
type HealthHandler struct {
	logger *zap.Logger
	checks []HealthCheck
	mu     sync.RWMutex
}

// HealthCheck 健康检查接口
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// ReadyStatus 就绪检查响应
type ReadyStatus struct {
	Status    string                 `json:"status"` // "ok", "unavailable"
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status  string `json:"status"` // "pass", "fail"
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		logger: logger,
		checks: make([]HealthCheck, 0),
	}
}

// RegisterCheck 注册健康检查
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleHealth 处理 /health 请求
// @Summary 健康检查
// @Tags 健康
// @Produce json
// @Success 200 {object} api.HealthResponse "服务正常"
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

// HandleHealthz 处理 /healthz 请求（Kubernetes 活跃度探针）
// @Summary Kubernetes 活跃度探针
// @Tags 健康
// @Produce json
// @Success 200 {object} api.HealthResponse "服务处于活动状态"
// @Router /healthz [get]
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

// HandleReady 处理 /ready 请求，执行已注册的检查
// @Summary 就绪检查
// @Tags 健康
// @Produce json
// @Success 200 {object} ReadyStatus "服务已就绪"
// @Failure 503 {object} ReadyStatus "服务未就绪"
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	// 各检查并发执行，结果按名称汇总
	results := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			results[i] = h.runCheck(ctx, check)
			return nil
		})
	}
	_ = g.Wait()

	status := ReadyStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}
	for i, check := range checks {
		if results[i].Status != "pass" {
			status.Status = "unavailable"
		}
		status.Checks[check.Name()] = results[i]
	}

	if status.Status != "ok" {
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

func (h *HealthHandler) runCheck(ctx context.Context, check HealthCheck) CheckResult {
	start := time.Now()
	err := check.Check(ctx)
	latency := time.Since(start)

	result := CheckResult{Status: "pass", Latency: latency.String()}
	if err != nil {
		result.Status = "fail"
		result.Message = err.Error()
		h.logger.Warn("health check failed",
			zap.String("check", check.Name()),
			zap.Error(err),
			zap.Duration("latency", latency),
		)
	}
	return result
}

// HandleVersion 处理 /version 请求
// @Summary 版本信息
// @Tags 健康
// @Produce json
// @Success 200 {object} api.VersionResponse "版本信息"
// @Router /version [get]
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, api.VersionResponse{
			Version:   version,
			BuildTime: buildTime,
			GitCommit: gitCommit,
		})
	}
}

// =============================================================================
// 🔧 内置健康检查实现
// =============================================================================

// BridgeHealthCheck 阻塞调用工作池容量检查：排队已满时视为未就绪
type BridgeHealthCheck struct {
	stats func() pool.Stats
}

// NewBridgeHealthCheck 创建工作池检查
func NewBridgeHealthCheck(stats func() pool.Stats) *BridgeHealthCheck {
	return &BridgeHealthCheck{stats: stats}
}

func (c *BridgeHealthCheck) Name() string {
	return "bridge"
}

func (c *BridgeHealthCheck) Check(ctx context.Context) error {
	s := c.stats()
	if s.Capacity > 0 && s.Active+s.Queued >= s.Capacity {
		return fmt.Errorf("bridge saturated: %d active, %d queued", s.Active, s.Queued)
	}
	return nil
}
