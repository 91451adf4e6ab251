package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	Env         string `env:"ENV" envDefault:"development"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	JWTSecret       string        `env:"JWT_SECRET,required,notEmpty"`
	JWTAccessExpiry time.Duration `env:"JWT_ACCESS_EXPIRY" envDefault:"15m"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT"`

	Catalog CatalogConfig
	Redis   RedisConfig

	SessionIdleTimeout    time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	DefaultCollectionName string        `env:"DEFAULT_COLLECTION_NAME" envDefault:"My Collection"`
}

type CatalogConfig struct {
	BaseURL     string        `env:"RAWG_BASE_URL" envDefault:"https://api.rawg.io/api"`
	APIKey      string        `env:"RAWG_API_KEY"`
	Timeout     time.Duration `env:"CATALOG_TIMEOUT" envDefault:"10s"`
	MaxRetries  int           `env:"CATALOG_MAX_RETRIES" envDefault:"3"`
	RetryDelay  time.Duration `env:"CATALOG_RETRY_DELAY" envDefault:"1s"`
	Concurrency int           `env:"CATALOG_CONCURRENCY" envDefault:"8"`
	CacheTTL    time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"1h"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
		if cfg.IsProduction() {
			cfg.LogFormat = "json"
		}
	}

	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesMemoryStore reports whether collections are kept in process instead of Postgres.
func (c *Config) UsesMemoryStore() bool {
	return c.DatabaseURL == "memory://"
}

func (c *Config) CacheEnabled() bool {
	return c.Redis.Addr != ""
}
