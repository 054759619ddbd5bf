// Package backend builds a provider and generation store from config.
package backend

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/keyedcache/genstore"
	"github.com/unkn0wn-root/keyedcache/internal/config"
	pr "github.com/unkn0wn-root/keyedcache/provider"
	"github.com/unkn0wn-root/keyedcache/provider/bigcache"
	"github.com/unkn0wn-root/keyedcache/provider/memory"
	"github.com/unkn0wn-root/keyedcache/provider/redis"
	"github.com/unkn0wn-root/keyedcache/provider/ristretto"
	"github.com/unkn0wn-root/keyedcache/provider/sqlite"
)

// Backend is what a cache needs from the outside world.
// Gens is nil for in-process backends; the cache then keeps its own.
type Backend struct {
	Provider pr.Provider
	Gens     genstore.GenStore
}

func Open(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return Backend{Provider: memory.New(memory.Config{MaxItems: cfg.MaxItems})}, nil

	case config.BackendRistretto:
		p, err := ristretto.New(ristretto.Config{
			NumCounters: int64(cfg.MaxItems) * 10,
			MaxCost:     int64(cfg.MaxItems),
			BufferItems: 64,
		})
		if err != nil {
			return Backend{}, err
		}
		return Backend{Provider: p}, nil

	case config.BackendBigcache:
		p, err := bigcache.New(bigcache.Config{
			LifeWindow:         lifeWindow(cfg.DefaultTTL),
			MaxEntriesInWindow: cfg.MaxItems,
		})
		if err != nil {
			return Backend{}, err
		}
		return Backend{Provider: p}, nil

	case config.BackendRedis:
		opts, err := goredis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return Backend{}, fmt.Errorf("parse KCACHE_REDIS_URL: %w", err)
		}
		client := goredis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return Backend{}, fmt.Errorf("redis ping: %w", err)
		}
		// the provider owns the client; the gen store borrows it
		p, err := redis.New(redis.Config{
			Client:       client,
			CloseClient:  true,
			FlushPattern: redis.PrefixPattern(cfg.Prefix),
		})
		if err != nil {
			_ = client.Close()
			return Backend{}, err
		}
		return Backend{Provider: p, Gens: genstore.NewRedisGenStore(client, cfg.Redis.GenNamespace)}, nil

	case config.BackendSQLite:
		p, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return Backend{}, fmt.Errorf("open sqlite %q: %w", cfg.SQLite.Path, err)
		}
		return Backend{Provider: p}, nil
	}
	return Backend{}, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// bigcache evicts by a global window; keep it at least as long as the default TTL
func lifeWindow(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 24 * time.Hour
	}
	return ttl
}
