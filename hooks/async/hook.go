// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    CorruptEvery: 10, // sample logs: ~every 10th corrupt entry
//	    BackendEvery: 1,  // log every backend error
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := keyedcache.New[Book](keyedcache.Options[Book]{
//	    KeyPrefix: "app:prod:book:",
//	    Provider:  provider,
//	    Codec:     codec.JSON[Book]{},
//	    GenStore:  genstore.NewRedisGenStore(rdb, "app:prod", genstore.WithGenTTL(24*time.Hour)),
//	    Hooks:     hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/keyedcache"
)

// Hooks forwards events to inner on worker goroutines. When the queue is
// full, or after Close, events are dropped and counted.
type Hooks struct {
	inner keyedcache.Hooks
	q     chan func()
	wg    sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ keyedcache.Hooks = (*Hooks)(nil)

func New(inner keyedcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers.
func (h *Hooks) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.q)
	h.mu.Unlock()
	h.wg.Wait()
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) CorruptEntry(k, r string)       { h.try(func() { h.inner.CorruptEntry(k, r) }) }
func (h *Hooks) DependencyChanged(k string)     { h.try(func() { h.inner.DependencyChanged(k) }) }
func (h *Hooks) WriteFailed(k string)           { h.try(func() { h.inner.WriteFailed(k) }) }
func (h *Hooks) GenBumpError(t string, e error) { h.try(func() { h.inner.GenBumpError(t, e) }) }
func (h *Hooks) ProviderSetRejected(k, op string) {
	h.try(func() { h.inner.ProviderSetRejected(k, op) })
}
func (h *Hooks) BackendError(op, k string, err error) {
	h.try(func() { h.inner.BackendError(op, k, err) })
}
