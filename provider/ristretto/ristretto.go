package ristretto

import (
	"context"
	"errors"
	"sync"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/keyedcache/provider"
)

// Provider is a cost-aware in-process store. Cost comes from
// Options.ComputeSetCost on the cache.
type Provider struct {
	c *rc.Cache

	// serializes Add so that check-then-set is atomic within this process
	addMu sync.Mutex
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

// Set waits for the write buffer to drain so the value is visible to the
// next Get. ok=false means ristretto dropped or refused the item.
func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	ok := p.c.SetWithTTL(key, value, cost, nonNegative(ttl))
	p.c.Wait()
	return ok, nil
}

func (p *Provider) Add(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	p.addMu.Lock()
	defer p.addMu.Unlock()
	if _, ok := p.c.Get(key); ok {
		return false, nil
	}
	return p.Set(ctx, key, value, cost, ttl)
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Provider) Flush(_ context.Context) error {
	p.c.Clear()
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto counters (nil unless Config.Metrics is set).
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }

// ristretto treats ttl < 0 as "already expired"; keyedcache means "forever"
func nonNegative(ttl time.Duration) time.Duration {
	if ttl < 0 {
		return 0
	}
	return ttl
}
