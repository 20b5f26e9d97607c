package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/dashscope-router/api/handlers"
	"github.com/BaSui01/dashscope-router/config"
	"github.com/BaSui01/dashscope-router/dashscope"
	"github.com/BaSui01/dashscope-router/gateway"
	"github.com/BaSui01/dashscope-router/internal/metrics"
	"github.com/BaSui01/dashscope-router/internal/pool"
	"github.com/BaSui01/dashscope-router/internal/server"
	"github.com/BaSui01/dashscope-router/internal/telemetry"
	"github.com/BaSui01/dashscope-router/internal/uafilter"
)

// metricsNamespace Prometheus 指标命名空间
const metricsNamespace = "dashscope_router"

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 dashscope-router 的主服务器
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	namespace  string

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 组件
	telemetry *telemetry.Providers
	collector *metrics.Collector
	client    *dashscope.Client
	workers   *pool.Pool
	bridge    *gateway.Bridge
	uaFilter  *uafilter.Filter

	// Handlers
	healthHandler *handlers.HealthHandler
	modelsHandler *handlers.ModelsHandler
	audioHandler  *handlers.AudioHandler
	imageHandler  *handlers.ImageHandler

	// 热更新管理器
	hotReloadManager *config.HotReloadManager

	// 后台任务（GC）生命周期
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, providers *telemetry.Providers) *Server {
	return &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		namespace:  metricsNamespace,
		telemetry:  providers,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化组件与 Handlers
	if err := s.initComponents(); err != nil {
		return fmt.Errorf("failed to init components: %w", err)
	}

	// 2. 初始化热更新管理器（仅在指定配置文件时）
	if err := s.initHotReloadManager(); err != nil {
		return fmt.Errorf("failed to init hot reload manager: %w", err)
	}

	// 3. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 4. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// 5. 后台任务
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		runPeriodicGC(ctx, s.cfg.Memory.GCInterval(), s.logger.With(zap.String("component", "gc")))
	}()

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.String("dashscope_base_url", s.client.BaseURL()),
		zap.Bool("hot_reload_enabled", s.hotReloadManager != nil),
	)
	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initComponents 按依赖顺序组装 DashScope 客户端、网关与 handlers
func (s *Server) initComponents() error {
	s.collector = metrics.NewCollector(s.namespace, s.logger)

	clientCfg := dashscope.ConfigFrom(s.cfg.DashScope)
	clientCfg.UserAgent = "dashscope-router/" + Version
	s.client = dashscope.New(clientCfg, s.logger, dashscope.WithRecorder(s.collector))

	s.workers = pool.New(pool.Config{
		MaxWorkers:  s.cfg.Bridge.MaxWorkers,
		QueueSize:   s.cfg.Bridge.QueueSize,
		IdleTimeout: s.cfg.Bridge.IdleTimeout,
		PanicHandler: func(r any) {
			s.logger.Error("bridge task panicked", zap.Any("panic", r))
		},
	})
	bridge, err := gateway.NewBridge(s.workers, telemetry.Meter(), s.logger)
	if err != nil {
		return err
	}
	s.bridge = bridge
	s.collector.RegisterPoolStats("image_async", bridge.Stats)

	table := gateway.NewCapabilityTable(gateway.TableConfig{
		DefaultASR:   s.cfg.Models.DefaultASR,
		DefaultTTS:   s.cfg.Models.DefaultTTS,
		DefaultImage: s.cfg.Models.DefaultImage,
		DefaultVoice: s.cfg.Models.DefaultVoice,
	})
	normalizer := gateway.NewNormalizer(table, s.cfg.Server.MaxUploadBytes)
	dispatcher := gateway.NewDispatcher(s.client, s.client, table, bridge, s.logger,
		gateway.WithUpstreamRecorder(s.collector),
		gateway.WithTracer(telemetry.Tracer()),
	)
	renderer := gateway.NewRenderer(s.client, 0, s.logger)

	s.uaFilter = uafilter.New(s.cfg.UAWhitelist, s.logger)

	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewBridgeHealthCheck(bridge.Stats))
	s.modelsHandler = handlers.NewModelsHandler(table)
	s.audioHandler = handlers.NewAudioHandler(normalizer, dispatcher, renderer, s.defaultAPIKey, s.logger)
	s.imageHandler = handlers.NewImageHandler(normalizer, dispatcher, renderer, s.defaultAPIKey, s.logger)

	s.logger.Info("Handlers initialized",
		zap.String("default_asr", table.DefaultModel(gateway.ModalityTranscription)),
		zap.String("default_tts", table.DefaultModel(gateway.ModalitySpeech)),
		zap.String("default_image", table.DefaultModel(gateway.ModalityImage)),
		zap.Bool("default_api_key", s.defaultAPIKey() != ""),
	)
	return nil
}

// currentConfig 返回热加载后的最新配置
func (s *Server) currentConfig() *config.Config {
	if s.hotReloadManager != nil {
		return s.hotReloadManager.GetConfig()
	}
	return s.cfg
}

// defaultAPIKey 请求未携带凭证时使用的 DashScope Key
func (s *Server) defaultAPIKey() string {
	return s.currentConfig().DashScope.APIKey
}

// initHotReloadManager 初始化热更新管理器
func (s *Server) initHotReloadManager() error {
	if s.configPath == "" {
		return nil
	}

	s.hotReloadManager = config.NewHotReloadManager(s.cfg,
		config.WithHotReloadLogger(s.logger),
		config.WithReloadPath(s.configPath),
	)

	// 仅 UA 白名单与默认 Key 在运行时生效，其余字段需要重启
	s.hotReloadManager.OnReload(s.applyReload)

	if err := s.hotReloadManager.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start hot reload manager: %w", err)
	}
	return nil
}

// applyReload 配置重载回调
func (s *Server) applyReload(oldConfig, newConfig *config.Config) {
	if newConfig.UAWhitelist.HotReload {
		s.uaFilter.Update(newConfig.UAWhitelist)
	}
	if oldConfig.DashScope.APIKey != newConfig.DashScope.APIKey {
		s.logger.Info("default API key changed", zap.Bool("configured", newConfig.DashScope.APIKey != ""))
	}
	if oldConfig.Server != newConfig.Server || oldConfig.Models != newConfig.Models {
		s.logger.Warn("server or model settings changed, restart required to apply")
	}
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// routes 注册 API 路由并构建中间件链
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// OpenAI 兼容端点
	mux.HandleFunc("GET /v1/models", s.modelsHandler.HandleList)
	mux.HandleFunc("POST /v1/audio/transcriptions", s.audioHandler.HandleTranscriptions)
	mux.HandleFunc("POST /v1/audio/speech", s.audioHandler.HandleSpeech)
	mux.HandleFunc("POST /v1/images/generations", s.imageHandler.HandleGenerations)

	// 健康检查端点
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("/", NotFound())

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		OTelTracing(),
		UAWhitelist(s.uaFilter, s.collector, s.logger),
	)
}

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	serverConfig := server.Config{
		Name:            "api",
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     s.cfg.Server.IdleTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(s.routes(), serverConfig, s.logger)
	return s.httpManager.Start()
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器，端口为 0 时不启动
func (s *Server) startMetricsServer() error {
	if s.cfg.Server.MetricsPort == 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Name:            "metrics",
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.ReadTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	return s.metricsManager.Start()
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		if err := s.httpManager.WaitForShutdown(context.Background()); err != nil {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// 1. 停止后台任务
	if s.cancel != nil {
		s.cancel()
	}

	// 2. 停止热更新管理器
	if s.hotReloadManager != nil {
		s.hotReloadManager.Stop()
	}

	// 3. 关闭 HTTP 服务器（幂等）
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 4. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 5. 关闭工作池，排队中的异步任务不再执行
	if s.workers != nil {
		s.workers.Close()
	}

	// 6. 刷新遥测数据
	if err := s.telemetry.Shutdown(ctx); err != nil {
		s.logger.Error("Telemetry shutdown error", zap.Error(err))
	}

	s.wg.Wait()
	s.logger.Info("Graceful shutdown completed")
}
