package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/keyedcache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

const scanCount = 500

type Redis struct {
	rdb          goredis.UniversalClient
	closeClient  bool
	flushPattern string
}

var (
	_ pr.Provider    = (*Redis)(nil)
	_ pr.BatchGetter = (*Redis)(nil)
	_ pr.BatchSetter = (*Redis)(nil)
	_ pr.BatchAdder  = (*Redis)(nil)
	_ pr.Exister     = (*Redis)(nil)
)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this provider exclusively owns the client
	// FlushPattern limits Flush to keys matching a glob (e.g. "books:*").
	// Empty means FLUSHDB, which also drops keys written by other tenants.
	FlushPattern string
}

// PrefixPattern returns a FlushPattern matching exactly the keys that start
// with prefix. Glob metacharacters in prefix are escaped. An empty prefix
// yields "", which flushes the whole database.
func PrefixPattern(prefix string) string {
	if prefix == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(prefix) + 8)
	for i := 0; i < len(prefix); i++ {
		switch c := prefix[i]; c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('*')
	return b.String()
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient, flushPattern: cfg.FlushPattern}, nil
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if err := p.rdb.Set(ctx, key, value, expiry(ttl)).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// Add uses SET NX, so it is atomic across clients.
func (p *Redis) Add(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	return p.rdb.SetNX(ctx, key, value, expiry(ttl)).Result()
}

func (p *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := p.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

func (p *Redis) Del(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, key).Err()
}

// Flush runs FLUSHDB, or deletes the keys matching FlushPattern in SCAN
// batches. The pattern variant is not atomic with concurrent writers.
func (p *Redis) Flush(ctx context.Context) error {
	if p.flushPattern == "" {
		return p.rdb.FlushDB(ctx).Err()
	}
	iter := p.rdb.Scan(ctx, 0, p.flushPattern, scanCount).Iterator()
	batch := make([]string, 0, scanCount)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanCount {
			if err := p.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return p.rdb.Del(ctx, batch...).Err()
	}
	return nil
}

// GetMany issues a single MGET.
func (p *Redis) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := p.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		switch vv := v.(type) {
		case string:
			out[keys[i]] = []byte(vv)
		case []byte:
			out[keys[i]] = vv
		}
	}
	return out, nil
}

// SetMany pipelines one SET per entry; a failed command fails only its key.
func (p *Redis) SetMany(ctx context.Context, entries []pr.Entry, ttl time.Duration) ([]string, error) {
	cmds := make([]*goredis.StatusCmd, len(entries))
	_, _ = p.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, e := range entries {
			cmds[i] = pipe.Set(ctx, e.Key, e.Value, expiry(ttl))
		}
		return nil
	})
	var failed []string
	for i, cmd := range cmds {
		if cmd.Err() != nil {
			failed = append(failed, entries[i].Key)
		}
	}
	return failed, nil
}

// AddMany pipelines one SET NX per entry.
func (p *Redis) AddMany(ctx context.Context, entries []pr.Entry, ttl time.Duration) ([]string, error) {
	cmds := make([]*goredis.BoolCmd, len(entries))
	_, _ = p.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, e := range entries {
			cmds[i] = pipe.SetNX(ctx, e.Key, e.Value, expiry(ttl))
		}
		return nil
	})
	var failed []string
	for i, cmd := range cmds {
		if ok, err := cmd.Result(); err != nil || !ok {
			failed = append(failed, entries[i].Key)
		}
	}
	return failed, nil
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

// non-positive TTLs mean "no expiry"
func expiry(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl
}
