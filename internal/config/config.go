package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"go.uber.org/zap"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Store    StoreConfig
	Dialogue DialogueConfig
	Auth     AuthConfig
	Log      LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if err := cfg.Store.validate(); err != nil {
		return nil, err
	}
	if cfg.AI.MaxTokens <= 0 {
		return nil, fmt.Errorf("invalid AI_MAX_TOKENS value: %d", cfg.AI.MaxTokens)
	}

	return &cfg, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Addr string
}

// normalizeAddr 解析服务器监听地址。
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.ContainsAny(port, " \t") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// AIConfig 描述大模型相关配置。Primary 优先，Secondary 作为备用。
type AIConfig struct {
	Primary     OpenAIConfig `envPrefix:"OPENAI_"`
	Secondary   ArkConfig    `envPrefix:"ARK_"`
	MaxTokens   int          `env:"AI_MAX_TOKENS" envDefault:"150"`
	Temperature float32      `env:"AI_TEMPERATURE" envDefault:"0.7"`
}

// OpenAIConfig points at any OpenAI-compatible chat completions endpoint.
type OpenAIConfig struct {
	APIKey  string `env:"API_KEY"`
	BaseURL string `env:"BASE_URL" envDefault:"https://api.openai.com/v1"`
	Model   string `env:"MODEL" envDefault:"gpt-4o-mini"`
}

// Enabled 表示是否提供了 API Key。
func (c OpenAIConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != "" && c.Model != ""
}

// ArkConfig 描述火山方舟模型配置。
type ArkConfig struct {
	APIKey    string `env:"API_KEY"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Model     string `env:"MODEL"`
	BaseURL   string `env:"BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region    string `env:"REGION" envDefault:"cn-beijing"`
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个方舟模型实例。
func (c ArkConfig) NewChatModel(ctx context.Context, maxTokens int, temperature float32) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver      string `env:"STORE_DRIVER" envDefault:"memory"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"./data/echomind.db"`
	DatabaseURL string `env:"DATABASE_URL"`
}

func (c StoreConfig) validate() error {
	switch c.Driver {
	case DriverMemory, DriverSQLite:
		return nil
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", DriverPostgres)
		}
		return nil
	default:
		return fmt.Errorf("invalid STORE_DRIVER value: %q", c.Driver)
	}
}

// DialogueConfig 描述对话管线的数据来源。
type DialogueConfig struct {
	SeedFile     string `env:"SEED_FILE"`
	EmotionModel string `env:"EMOTION_MODEL" envDefault:"default"`
}

// AuthConfig names the header the transport trusts for caller identity.
type AuthConfig struct {
	UserHeader string `env:"AUTH_USER_HEADER" envDefault:"X-User-ID"`
}

// LogConfig 控制日志级别与输出格式。
type LogConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Development bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

// NewLogger builds a zap logger; development mode uses the console encoder.
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL value %q: %w", c.Level, err)
	}
	zc.Level = level

	return zc.Build()
}
