package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Vendors  VendorsConfig  `mapstructure:"vendors"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`      // 是否自动迁移表结构
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize     int `mapstructure:"pool_size"`      // 连接池大小
	MinIdleConns int `mapstructure:"min_idle_conns"` // 最小空闲连接数
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// PipelineConfig 调用流水线配置
type PipelineConfig struct {
	MaxBodyBytes    int64 `mapstructure:"max_body_bytes"`   // 入站请求体大小上限（字节），默认 2MB
	DispatchTimeout int   `mapstructure:"dispatch_timeout"` // 上游调用超时（秒），默认 120
	RuleCacheTTL    int   `mapstructure:"rule_cache_ttl"`   // 规则缓存 TTL（秒），0 表示不缓存
}

// VendorsConfig 各厂商出站调用配置
// 只保留网关自身需要的出站参数，厂商凭证走 credentials 表
type VendorsConfig struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`

	// BaseURLs 按方言标签配置出站基址，凭证上的 base_url 优先
	BaseURLs map[string]string `mapstructure:"base_urls"`
}

// AnthropicConfig Anthropic 出站配置
// CountTokensURL 供声明式 Token 计数适配器使用
type AnthropicConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIVersion string `mapstructure:"api_version"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// WorkerConfig 后台 Worker 配置
type WorkerConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency"`
}

// 各方言的默认出站基址，本地部署类方言指向常见默认端口
var defaultVendorBaseURLs = map[string]string{
	"openai-chat":            "https://api.openai.com",
	"anthropic-messages":     "https://api.anthropic.com",
	"gemini-generateContent": "https://generativelanguage.googleapis.com",
	"bedrock-converse":       "https://bedrock-runtime.us-east-1.amazonaws.com",
	"cohere-chat":            "https://api.cohere.com",
	"cerebras-chat":          "https://api.cerebras.ai",
	"mistral-chat":           "https://api.mistral.ai",
	"vllm-chat":              "http://localhost:8000",
	"ollama-chat":            "http://localhost:11434/v1",
	"zhipuai-chat":           "https://open.bigmodel.cn/api/paas/v4",
}

var globalConfig *Config

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	// 设置配置文件名和路径
	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP") // 环境变量前缀：APP_
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 支持嵌套配置：APP_DATABASE_HOST

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	globalConfig = &cfg
	return &cfg, nil
}

// applyDefaults 补全未配置项的默认值
func applyDefaults(cfg *Config) {
	if cfg.Pipeline.MaxBodyBytes <= 0 {
		cfg.Pipeline.MaxBodyBytes = 2 << 20
	}
	if cfg.Pipeline.DispatchTimeout <= 0 {
		cfg.Pipeline.DispatchTimeout = 120
	}
	if cfg.Vendors.Anthropic.BaseURL == "" {
		cfg.Vendors.Anthropic.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Vendors.Anthropic.APIVersion == "" {
		cfg.Vendors.Anthropic.APIVersion = "2023-06-01"
	}
	if cfg.Vendors.BaseURLs == nil {
		cfg.Vendors.BaseURLs = map[string]string{}
	}
	for tag, url := range defaultVendorBaseURLs {
		if cfg.Vendors.BaseURLs[tag] == "" {
			cfg.Vendors.BaseURLs[tag] = url
		}
	}
	if cfg.Worker.Concurrency <= 0 {
		cfg.Worker.Concurrency = 10
	}
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
