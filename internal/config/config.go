package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
)

// 列挙値の設定で受け付ける値。
var (
	cacheBackends = []string{"redis", "memory"}
	cachePolicies = []string{"degrade", "strict"}
	logLevels     = []string{"debug", "info", "warn", "error"}
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string        `env:"DATABASE_URL,required,notEmpty"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS"    envDefault:"10"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS"    envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	StartupRetryMax   time.Duration `env:"STARTUP_RETRY_MAX"    envDefault:"30s"`

	// Auth
	JWTSecret      string        `env:"JWT_SECRET,required,notEmpty"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"24h"`

	// Feed cache
	CacheBackend          string        `env:"CACHE_BACKEND"            envDefault:"redis"`
	RedisAddr             string        `env:"REDIS_ADDR"               envDefault:"localhost:6379"`
	RedisPassword         string        `env:"REDIS_PASSWORD"`
	RedisDB               int           `env:"REDIS_DB"                 envDefault:"0"`
	FeedCacheTTL          time.Duration `env:"FEED_CACHE_TTL"           envDefault:"60s"`
	CacheOpTimeout        time.Duration `env:"CACHE_OP_TIMEOUT"         envDefault:"250ms"`
	FeedCachePolicy       string        `env:"FEED_CACHE_POLICY"        envDefault:"degrade"`
	MemoryCacheMaxEntries int           `env:"MEMORY_CACHE_MAX_ENTRIES" envDefault:"10000"`

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitAuth    int `env:"RATE_LIMIT_AUTH"    envDefault:"10"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL"    envDefault:"http://localhost:8080"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合や値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		if missing := missingVars(err); len(missing) > 0 {
			return nil, fmt.Errorf("required environment variables are not set: %v", missing)
		}
		return nil, fmt.Errorf("invalid environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParsedBaseURL はBASE_URLを解析して返す。Loadで検証済みのため失敗しない。
func (c *Config) ParsedBaseURL() *url.URL {
	u, _ := url.Parse(c.BaseURL)
	return u
}

func (c *Config) validate() error {
	if !slices.Contains(cacheBackends, c.CacheBackend) {
		return fmt.Errorf("CACHE_BACKEND must be one of %v, got %q", cacheBackends, c.CacheBackend)
	}
	if !slices.Contains(cachePolicies, c.FeedCachePolicy) {
		return fmt.Errorf("FEED_CACHE_POLICY must be one of %v, got %q", cachePolicies, c.FeedCachePolicy)
	}
	if !slices.Contains(logLevels, c.LogLevel) {
		return fmt.Errorf("LOG_LEVEL must be one of %v, got %q", logLevels, c.LogLevel)
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BASE_URL must be an absolute URL, got %q", c.BaseURL)
	}

	if c.FeedCacheTTL <= 0 {
		return fmt.Errorf("FEED_CACHE_TTL must be positive, got %s", c.FeedCacheTTL)
	}
	if c.RateLimitGeneral <= 0 || c.RateLimitAuth <= 0 {
		return fmt.Errorf("RATE_LIMIT_GENERAL and RATE_LIMIT_AUTH must be positive")
	}
	if c.MemoryCacheMaxEntries <= 0 {
		return fmt.Errorf("MEMORY_CACHE_MAX_ENTRIES must be positive, got %d", c.MemoryCacheMaxEntries)
	}
	return nil
}

// missingVars はenv.Parseのエラーから未設定・空の必須環境変数名を抽出する。
func missingVars(err error) []string {
	var agg env.AggregateError
	if !errors.As(err, &agg) {
		return nil
	}

	var missing []string
	for _, e := range agg.Errors {
		var notSet env.VarIsNotSetError
		var empty env.EmptyVarError
		switch {
		case errors.As(e, &notSet):
			missing = append(missing, notSet.Key)
		case errors.As(e, &empty):
			missing = append(missing, empty.Key)
		}
	}
	return missing
}
