// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// トークンストアの種別
const (
	TokenStorePostgres = "postgres"
	TokenStoreRedis    = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`

	// OAuth
	GoogleClientID       string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret   string        `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL    string        `env:"GOOGLE_REDIRECT_URL"`
	OAuthExchangeTimeout time.Duration `env:"OAUTH_EXCHANGE_TIMEOUT" envDefault:"10s"`
	OAuthStateTTL        time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`

	// Session token
	SessionSecret string        `env:"SESSION_SECRET"`
	TokenStore    string        `env:"TOKEN_STORE" envDefault:"postgres"`
	RedisURL      string        `env:"REDIS_URL"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"0s"`

	// Inventory
	LowStockThreshold int `env:"LOW_STOCK_THRESHOLD" envDefault:"10"`

	// Worker
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"24h"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Server
	ServerPort  string `env:"SERVER_PORT" envDefault:"8000"`
	WebPort     string `env:"WEB_PORT" envDefault:"3000"`
	APIBaseURL  string `env:"API_BASE_URL" envDefault:"http://localhost:8000"`
	FrontendURL string `env:"FRONTEND_URL"`

	// Cookie（FRONTEND_URLのスキームから導出する）
	CookieSecure bool `env:"-"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`
}

// Load は.envファイル（存在する場合）と環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は未設定の変数名をすべて含むエラーを返す。
func Load() (*Config, error) {
	// .envが存在しない環境（本番コンテナ等）では読み込みエラーを無視する
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	required := []struct {
		name  string
		value string
	}{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"GOOGLE_CLIENT_ID", cfg.GoogleClientID},
		{"GOOGLE_CLIENT_SECRET", cfg.GoogleClientSecret},
		{"GOOGLE_REDIRECT_URL", cfg.GoogleRedirectURL},
		{"SESSION_SECRET", cfg.SessionSecret},
		{"FRONTEND_URL", cfg.FrontendURL},
	}
	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	cfg.CookieSecure = strings.HasPrefix(cfg.FrontendURL, "https://")

	return cfg, nil
}

// validate は値の組み合わせと範囲を検証する。
func (c *Config) validate() error {
	switch c.TokenStore {
	case TokenStorePostgres:
	case TokenStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when TOKEN_STORE=%s", TokenStoreRedis)
		}
	default:
		return fmt.Errorf("unsupported TOKEN_STORE: %q", c.TokenStore)
	}

	if c.TokenTTL < 0 {
		return fmt.Errorf("TOKEN_TTL must not be negative: %s", c.TokenTTL)
	}
	if c.OAuthExchangeTimeout <= 0 {
		return fmt.Errorf("OAUTH_EXCHANGE_TIMEOUT must be positive: %s", c.OAuthExchangeTimeout)
	}
	if c.OAuthStateTTL <= 0 {
		return fmt.Errorf("OAUTH_STATE_TTL must be positive: %s", c.OAuthStateTTL)
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive: %s", c.CleanupInterval)
	}
	if c.LowStockThreshold < 0 {
		return fmt.Errorf("LOW_STOCK_THRESHOLD must not be negative: %d", c.LowStockThreshold)
	}
	return nil
}
