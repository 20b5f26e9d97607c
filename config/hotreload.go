// =============================================================================
// 🔄 配置热重载管理器
// =============================================================================
// 监听配置文件，变更后重新加载并通知订阅者（目前用于 UA 白名单规则）
// =============================================================================
package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReloadCallback 重载回调
type ReloadCallback func(oldConfig, newConfig *Config)

// ValidateFunc 应用新配置前的自定义校验钩子
type ValidateFunc func(newConfig *Config) error

// HotReloadManager 管理配置的运行时重载
type HotReloadManager struct {
	mu sync.RWMutex

	config     *Config
	configPath string
	envPrefix  string
	version    int

	watcher      *FileWatcher
	pollInterval time.Duration
	validateFunc ValidateFunc
	callbacks    []ReloadCallback

	running bool
	cancel  context.CancelFunc
	logger  *zap.Logger
}

// HotReloadOption 热重载选项
type HotReloadOption func(*HotReloadManager)

// WithHotReloadLogger 设置日志
func WithHotReloadLogger(logger *zap.Logger) HotReloadOption {
	return func(m *HotReloadManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithReloadPath 设置被监听的配置文件
func WithReloadPath(path string) HotReloadOption {
	return func(m *HotReloadManager) {
		m.configPath = path
	}
}

// WithReloadPollInterval 设置文件轮询间隔
func WithReloadPollInterval(d time.Duration) HotReloadOption {
	return func(m *HotReloadManager) {
		m.pollInterval = d
	}
}

// WithValidateFunc 设置自定义校验钩子
func WithValidateFunc(fn ValidateFunc) HotReloadOption {
	return func(m *HotReloadManager) {
		m.validateFunc = fn
	}
}

// NewHotReloadManager 创建热重载管理器
func NewHotReloadManager(cfg *Config, opts ...HotReloadOption) *HotReloadManager {
	m := &HotReloadManager{
		config:       cfg,
		envPrefix:    "DASHSCOPE_ROUTER",
		pollInterval: 2 * time.Second,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start 启动热重载管理器
func (m *HotReloadManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("hot reload manager already running")
	}
	if m.configPath == "" {
		return fmt.Errorf("no config path set")
	}

	watcher, err := NewFileWatcher(m.configPath,
		WithWatcherLogger(m.logger),
		WithPollInterval(m.pollInterval),
	)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	watcher.OnChange(m.handleFileChange)

	var watchCtx context.Context
	watchCtx, m.cancel = context.WithCancel(ctx)
	if err := watcher.Start(watchCtx); err != nil {
		m.cancel()
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	m.watcher = watcher
	m.running = true
	m.logger.Info("Hot reload manager started", zap.String("config_path", m.configPath))
	return nil
}

// Stop 停止热重载管理器
func (m *HotReloadManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.cancel()
	m.watcher.Stop()
	m.running = false
	m.logger.Info("Hot reload manager stopped")
}

// handleFileChange 处理文件更改事件，删除事件保留当前配置
func (m *HotReloadManager) handleFileChange(event FileEvent) {
	m.logger.Info("Configuration file changed",
		zap.String("path", event.Path),
		zap.String("op", event.Op.String()))

	if event.Op == FileOpWrite || event.Op == FileOpCreate {
		if err := m.ReloadFromFile(); err != nil {
			m.logger.Error("Failed to reload configuration", zap.Error(err))
		}
	}
}

// ReloadFromFile 从文件重新加载配置
func (m *HotReloadManager) ReloadFromFile() error {
	if m.configPath == "" {
		return fmt.Errorf("no config path set")
	}

	newConfig, err := NewLoader().
		WithConfigPath(m.configPath).
		WithEnvPrefix(m.envPrefix).
		Load()
	if err != nil {
		m.logger.Error("failed to load config from file, keeping current config",
			zap.Error(err), zap.String("path", m.configPath))
		return fmt.Errorf("failed to load config: %w", err)
	}

	return m.ApplyConfig(newConfig, "file")
}

// ApplyConfig 校验并替换当前配置，回调在锁外执行
func (m *HotReloadManager) ApplyConfig(newConfig *Config, source string) error {
	if m.validateFunc != nil {
		if err := m.validateFunc(newConfig); err != nil {
			m.logger.Warn("config validation hook failed",
				zap.Error(err), zap.String("source", source))
			return fmt.Errorf("validation hook failed: %w", err)
		}
	}

	m.mu.Lock()
	oldConfig := m.config
	m.config = newConfig
	m.version++
	version := m.version
	callbacks := make([]ReloadCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	m.logger.Info("configuration applied",
		zap.String("source", source),
		zap.Int("version", version))

	for _, cb := range callbacks {
		m.notifySafe(cb, oldConfig, newConfig)
	}
	return nil
}

func (m *HotReloadManager) notifySafe(cb ReloadCallback, oldConfig, newConfig *Config) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("reload callback panicked", zap.Any("panic", r))
		}
	}()
	cb(oldConfig, newConfig)
}

// OnReload 注册重载回调
func (m *HotReloadManager) OnReload(callback ReloadCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// GetConfig 返回当前配置
func (m *HotReloadManager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetCurrentVersion 返回已应用的重载次数
func (m *HotReloadManager) GetCurrentVersion() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}
