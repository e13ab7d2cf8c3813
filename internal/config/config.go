// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
// CONFIG_PATHのYAMLファイルを読み、同名の環境変数で上書きする。
type Config struct {
	Env string `yaml:"env" env:"APP_ENV" env-default:"local"`

	// Database
	DatabaseURL       string        `yaml:"database_url" env:"DATABASE_URL"`
	DBMaxOpenConns    int           `yaml:"db_max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"20"`
	DBMaxIdleConns    int           `yaml:"db_max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	DBConnMaxLifetime time.Duration `yaml:"db_conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"30m"`

	// Token
	AccessTokenSecret     string `yaml:"access_token_secret" env:"ACCESS_TOKEN_SECRET"`
	AccessTokenType       string `yaml:"access_token_type" env:"ACCESS_TOKEN_TYPE" env-default:"bearer"`
	AccessTokenExpireDays int    `yaml:"access_token_expire_days" env:"ACCESS_TOKEN_EXPIRE_DAYS" env-default:"7"`
	BcryptCost            int    `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"10"`

	// Login lockout
	LoginMaxFailures int           `yaml:"login_max_failures" env:"LOGIN_MAX_FAILURES" env-default:"5"`
	LoginLockout     time.Duration `yaml:"login_lockout" env:"LOGIN_LOCKOUT" env-default:"15m"`
	RedisURL         string        `yaml:"redis_url" env:"REDIS_URL"`

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int `yaml:"rate_limit_general" env:"RATE_LIMIT_GENERAL" env-default:"120"`
	RateLimitAuth    int `yaml:"rate_limit_auth" env:"RATE_LIMIT_AUTH" env-default:"10"`

	// Server
	ServerHost      string        `yaml:"server_host" env:"SERVER_HOST"`
	ServerPort      string        `yaml:"server_port" env:"SERVER_PORT" env-default:"8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"30s"`

	// CORS
	CORSAllowedOrigin string `yaml:"cors_allowed_origin" env:"CORS_ALLOWED_ORIGIN" env-default:"http://localhost:3000"`

	// Observability
	LogLevel     string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// create-adminコマンド専用
	AdminUsername string `yaml:"-" env:"ADMIN_USERNAME"`
	AdminPassword string `yaml:"-" env:"ADMIN_PASSWORD"`
}

// Load は設定を読み込む。
// CONFIG_PATHが指定されていればYAMLファイルを読み、環境変数で上書きする。
// 必須項目が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.AccessTokenSecret == "" {
		missing = append(missing, "ACCESS_TOKEN_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.AccessTokenExpireDays <= 0 {
		errs = append(errs, fmt.Errorf("ACCESS_TOKEN_EXPIRE_DAYS must be positive, got %d", c.AccessTokenExpireDays))
	}
	if c.LoginLockout <= 0 {
		errs = append(errs, fmt.Errorf("LOGIN_LOCKOUT must be positive, got %s", c.LoginLockout))
	}
	if c.RateLimitGeneral <= 0 || c.RateLimitAuth <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_GENERAL and RATE_LIMIT_AUTH must be positive"))
	}
	return errors.Join(errs...)
}

// TokenLifetime はアクセストークンの有効期間を返す。
func (c *Config) TokenLifetime() time.Duration {
	return time.Duration(c.AccessTokenExpireDays) * 24 * time.Hour
}

// Addr はHTTPサーバーの待ち受けアドレスを返す。
func (c *Config) Addr() string {
	return c.ServerHost + ":" + c.ServerPort
}
