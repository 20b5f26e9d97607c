// =============================================================================
// 📦 DashScope Router 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("DASHSCOPE_ROUTER").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 兼容环境变量 → 前缀环境变量
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 dashscope-router 的完整配置结构
type Config struct {
	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// DashScope 上游配置
	DashScope DashScopeConfig `yaml:"dashscope" env:"DASHSCOPE"`

	// Models 各端点默认模型
	Models ModelsConfig `yaml:"models" env:"MODELS"`

	// Bridge 阻塞调用工作池
	Bridge BridgeConfig `yaml:"bridge" env:"BRIDGE"`

	// UAWhitelist User-Agent 白名单
	UAWhitelist UAWhitelistConfig `yaml:"ua_whitelist" env:"UA_WHITELIST"`

	// Memory 内存回收
	Memory MemoryConfig `yaml:"memory" env:"MEMORY"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT" validate:"min=1,max=65535"`
	// Metrics 端口，0 表示不单独暴露 /metrics
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT" validate:"min=0,max=65535"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时（需覆盖异步生图的轮询时长）
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 空闲超时
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 上传音频文件的最大字节数
	MaxUploadBytes int64 `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES" validate:"min=1"`
}

// DashScopeConfig 上游 DashScope 配置
type DashScopeConfig struct {
	// API 基础地址
	BaseURL string `yaml:"base_url" env:"BASE_URL" validate:"required,url"`
	// 默认 API Key（请求未携带 Authorization 时使用）
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 同步调用超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT" validate:"gt=0"`
	// 异步任务（提交 + 轮询）总超时
	AsyncTimeout time.Duration `yaml:"async_timeout" env:"ASYNC_TIMEOUT" validate:"gt=0"`
	// 异步任务轮询间隔
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL" validate:"gt=0"`
	// 下载音频/图片资源的超时
	AssetTimeout time.Duration `yaml:"asset_timeout" env:"ASSET_TIMEOUT" validate:"gt=0"`
}

// ModelsConfig 默认模型
type ModelsConfig struct {
	DefaultASR   string `yaml:"default_asr" env:"DEFAULT_ASR" validate:"required"`
	DefaultTTS   string `yaml:"default_tts" env:"DEFAULT_TTS" validate:"required"`
	DefaultImage string `yaml:"default_image" env:"DEFAULT_IMAGE" validate:"required"`
	DefaultVoice string `yaml:"default_voice" env:"DEFAULT_VOICE" validate:"required"`
}

// BridgeConfig 阻塞调用工作池配置
type BridgeConfig struct {
	// 最大并发 worker 数
	MaxWorkers int `yaml:"max_workers" env:"MAX_WORKERS" validate:"min=1"`
	// 等待队列长度
	QueueSize int `yaml:"queue_size" env:"QUEUE_SIZE" validate:"min=0"`
	// worker 空闲回收时间
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
}

// UAWhitelistConfig User-Agent 白名单配置
type UAWhitelistConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 通配符规则（不区分大小写），例如 "curl/*"、"*OpenAI*"
	Rules []string `yaml:"rules" env:"RULES"`
	// 配置文件变更时是否热加载规则
	HotReload bool `yaml:"hot_reload" env:"HOT_RELOAD"`
}

// MemoryConfig 内存回收配置
type MemoryConfig struct {
	// 定时 GC 间隔（秒），0 表示关闭
	GCIntervalSeconds int `yaml:"gc_interval_seconds" env:"GC_INTERVAL_SECONDS" validate:"min=0"`
}

// GCInterval 返回 GC 间隔
func (m MemoryConfig) GCInterval() time.Duration {
	return time.Duration(m.GCIntervalSeconds) * time.Second
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL" validate:"oneof=debug info warn error"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT" validate:"oneof=json console"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE" validate:"min=0,max=1"`
	// 明文 gRPC（本地 collector 场景）
	Insecure bool `yaml:"insecure" env:"INSECURE"`
	// 指标导出周期
	ExportInterval time.Duration `yaml:"export_interval" env:"EXPORT_INTERVAL"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// legacyEnv 兼容旧部署方式的无前缀环境变量
var legacyEnv = map[string]func(*Config, string) error{
	"PORT": func(c *Config, v string) error {
		p, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Server.HTTPPort = p
		return nil
	},
	"DASHSCOPE_API_KEY":   func(c *Config, v string) error { c.DashScope.APIKey = v; return nil },
	"DASHSCOPE_BASE_URL":  func(c *Config, v string) error { c.DashScope.BaseURL = v; return nil },
	"DEFAULT_ASR_MODEL":   func(c *Config, v string) error { c.Models.DefaultASR = v; return nil },
	"DEFAULT_TTS_MODEL":   func(c *Config, v string) error { c.Models.DefaultTTS = v; return nil },
	"DEFAULT_IMAGE_MODEL": func(c *Config, v string) error { c.Models.DefaultImage = v; return nil },
}

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "DASHSCOPE_ROUTER",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := loadLegacyEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置，文件不存在时保留默认值
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func loadLegacyEnv(cfg *Config) error {
	for key, apply := range legacyEnv {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		if err := apply(cfg, v); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

// loadFromEnv 从前缀环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		envTag := t.Field(i).Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			field.Set(reflect.ValueOf(out))
		}
	}

	return nil
}

// =============================================================================
// 🔍 校验
// =============================================================================

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 验证配置
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("config validation errors: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("config validation errors: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}
