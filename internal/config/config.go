package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`
	// bcrypt hash of the key partners send in X-API-KEY. Empty disables the partner routes.
	IntegrationAPIKeyHash string `env:"INTEGRATION_API_KEY_HASH"`
	// HMAC-SHA256 secret for provider payment confirmations. Empty disables the callback route.
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	Port          int    `env:"PORT" envDefault:"8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv        string `env:"APP_ENV" envDefault:"production"`

	RedisAddr       string `env:"REDIS_ADDR"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`
	NotifyChannel   string `env:"NOTIFY_CHANNEL" envDefault:"wallet.notifications"`
	NotifyTimeoutMS int    `env:"NOTIFY_TIMEOUT_MS" envDefault:"250"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.NotifyTimeoutMS < 0 {
		return nil, fmt.Errorf("config.Load: NOTIFY_TIMEOUT_MS must not be negative")
	}
	return &cfg, nil
}

func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutMS) * time.Millisecond
}
