// Package memory is a bounded in-process provider backed by otter.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"

	pr "github.com/unkn0wn-root/keyedcache/provider"
)

const DefaultMaxItems = 10_000

// forever stands in for "no expiry"; otter needs a finite duration.
const forever = 100 * 365 * 24 * time.Hour

type item struct {
	value []byte
	ttl   time.Duration // <= 0 never expires
}

// Provider keeps entries in an otter cache with a size bound. Each write
// carries its own TTL, which otter applies and enforces itself, so expired
// entries stop counting against MaxItems without being read.
type Provider struct {
	cache *otter.Cache[string, item]

	addMu sync.Mutex
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	// MaxItems bounds the number of entries; 0 selects DefaultMaxItems.
	MaxItems int
}

func New(cfg Config) *Provider {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	return &Provider{
		cache: otter.Must(&otter.Options[string, item]{
			MaximumSize:      cfg.MaxItems,
			ExpiryCalculator: otter.ExpiryWritingFunc[string, item](entryTTL),
		}),
	}
}

func entryTTL(e otter.Entry[string, item]) time.Duration {
	if e.Value.ttl <= 0 {
		return forever
	}
	return e.Value.ttl
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := p.cache.GetEntry(key)
	if !ok {
		return nil, false, nil
	}
	return entry.Value.value, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.store(key, value, ttl)
	return true, nil
}

func (p *Provider) store(key string, value []byte, ttl time.Duration) {
	p.cache.Set(key, item{value: append([]byte(nil), value...), ttl: ttl})
}

func (p *Provider) Add(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.addMu.Lock()
	defer p.addMu.Unlock()
	if _, ok := p.cache.GetEntry(key); ok {
		return false, nil
	}
	p.store(key, value, ttl)
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.cache.Invalidate(key)
	return nil
}

func (p *Provider) Flush(_ context.Context) error {
	p.cache.InvalidateAll()
	return nil
}

func (p *Provider) Close(_ context.Context) error { return nil }
