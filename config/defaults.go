// =============================================================================
// 📦 DashScope Router 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultBaseURL DashScope 北京地域 API 地址
const DefaultBaseURL = "https://dashscope.aliyuncs.com/api/v1"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:      DefaultServerConfig(),
		DashScope:   DefaultDashScopeConfig(),
		Models:      DefaultModelsConfig(),
		Bridge:      DefaultBridgeConfig(),
		UAWhitelist: DefaultUAWhitelistConfig(),
		Memory:      DefaultMemoryConfig(),
		Log:         DefaultLogConfig(),
		Telemetry:   DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8081,
		MetricsPort:     9091,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    6 * time.Minute,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		MaxUploadBytes:  100 << 20,
	}
}

// DefaultDashScopeConfig 返回默认上游配置
func DefaultDashScopeConfig() DashScopeConfig {
	return DashScopeConfig{
		BaseURL:      DefaultBaseURL,
		Timeout:      2 * time.Minute,
		AsyncTimeout: 5 * time.Minute,
		PollInterval: 2 * time.Second,
		AssetTimeout: 2 * time.Minute,
	}
}

// DefaultModelsConfig 返回默认模型
func DefaultModelsConfig() ModelsConfig {
	return ModelsConfig{
		DefaultASR:   "qwen3-asr-flash",
		DefaultTTS:   "qwen3-tts-flash",
		DefaultImage: "qwen-image-plus",
		DefaultVoice: "Chelsie",
	}
}

// DefaultBridgeConfig 返回默认工作池配置
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		MaxWorkers:  16,
		QueueSize:   64,
		IdleTimeout: 60 * time.Second,
	}
}

// DefaultUAWhitelistConfig 返回默认白名单配置（关闭）
func DefaultUAWhitelistConfig() UAWhitelistConfig {
	return UAWhitelistConfig{
		Enabled: false,
		Rules:   []string{},
	}
}

// DefaultMemoryConfig 返回默认内存回收配置
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{GCIntervalSeconds: 300}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:        false,
		OTLPEndpoint:   "localhost:4317",
		ServiceName:    "dashscope-router",
		SampleRate:     0.1,
		Insecure:       true,
		ExportInterval: 30 * time.Second,
	}
}
