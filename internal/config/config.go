// Package config loads kcache settings from the environment.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap/zapcore"
)

const (
	BackendMemory    = "memory"
	BackendRistretto = "ristretto"
	BackendBigcache  = "bigcache"
	BackendRedis     = "redis"
	BackendSQLite    = "sqlite"
)

type Config struct {
	// Backend selects the provider: memory (default), ristretto, bigcache,
	// redis or sqlite. In-process backends only live as long as the command.
	Backend string `env:"KCACHE_BACKEND, default=memory"`

	// Prefix is prepended to every storage key.
	Prefix string `env:"KCACHE_PREFIX"`

	DefaultTTL time.Duration `env:"KCACHE_DEFAULT_TTL, default=0s"`
	MaxItems   int           `env:"KCACHE_MAX_ITEMS, default=10000"`
	LogLevel   string        `env:"KCACHE_LOG_LEVEL, default=info"`

	Redis  RedisConfig
	SQLite SQLiteConfig
}

type RedisConfig struct {
	// URL in redis:// or rediss:// form.
	URL string `env:"KCACHE_REDIS_URL"`

	// GenNamespace scopes tag generations in redis.
	GenNamespace string `env:"KCACHE_REDIS_GEN_NAMESPACE, default=keyedcache"`
}

type SQLiteConfig struct {
	Path string `env:"KCACHE_SQLITE_PATH, default=keyedcache.db"`
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendRistretto, BackendBigcache, BackendSQLite:
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("KCACHE_REDIS_URL required when KCACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown KCACHE_BACKEND %q", c.Backend)
	}

	if c.Backend == BackendSQLite && c.SQLite.Path == "" {
		return fmt.Errorf("KCACHE_SQLITE_PATH must not be empty")
	}
	if c.DefaultTTL < 0 {
		return fmt.Errorf("KCACHE_DEFAULT_TTL must not be negative")
	}
	if c.MaxItems <= 0 {
		return fmt.Errorf("KCACHE_MAX_ITEMS must be positive")
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("KCACHE_LOG_LEVEL: %w", err)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.LogLevel)
}
