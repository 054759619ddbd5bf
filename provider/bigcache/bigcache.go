package bigcache

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	bc "github.com/allegro/bigcache/v3"

	pr "github.com/unkn0wn-root/keyedcache/provider"
)

// Provider stores entries in bigcache shards. bigcache only knows a global
// LifeWindow, so each stored entry carries its own deadline in an 8-byte
// header that Get strips again.
type Provider struct {
	c   *bc.BigCache
	now func() time.Time

	addMu sync.Mutex
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
	Verbose            bool
}

const headerLen = 8

func New(cfg Config) (*Provider, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	conf.Verbose = cfg.Verbose
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, now: time.Now}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v, live := p.unwrap(b)
	if !live {
		_ = p.c.Delete(key)
		return nil, false, nil
	}
	return v, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if err := p.c.Set(key, p.wrap(value, ttl)); err != nil {
		return false, err
	}
	return true, nil
}

// Add is check-then-set under a process-local lock.
func (p *Provider) Add(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	p.addMu.Lock()
	defer p.addMu.Unlock()
	_, ok, err := p.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	return p.Set(ctx, key, value, cost, ttl)
}

func (p *Provider) Del(_ context.Context, key string) error {
	if err := p.c.Delete(key); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
		return err
	}
	return nil
}

func (p *Provider) Flush(_ context.Context) error {
	return p.c.Reset()
}

func (p *Provider) Close(_ context.Context) error {
	return p.c.Close()
}

// Len reports the number of stored entries, expired ones included.
func (p *Provider) Len() int { return p.c.Len() }

// wrap prefixes value with its deadline in unix nanos (0 = none).
func (p *Provider) wrap(value []byte, ttl time.Duration) []byte {
	out := make([]byte, headerLen+len(value))
	var deadline int64
	if ttl > 0 {
		deadline = p.now().Add(ttl).UnixNano()
	}
	binary.BigEndian.PutUint64(out[:headerLen], uint64(deadline))
	copy(out[headerLen:], value)
	return out
}

func (p *Provider) unwrap(b []byte) ([]byte, bool) {
	if len(b) < headerLen {
		return nil, false
	}
	deadline := int64(binary.BigEndian.Uint64(b[:headerLen]))
	if deadline != 0 && p.now().UnixNano() >= deadline {
		return nil, false
	}
	return b[headerLen:], true
}
