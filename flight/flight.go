// Package flight deduplicates concurrent read-through loads.
//
// keyedcache.Cache.GetOrSet lets every concurrent caller that misses run the
// producer. Group collapses callers that miss on the same storage key inside
// one process so the producer runs once and all of them share its result.
package flight

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/keyedcache"
)

type Group[V any] struct {
	cache keyedcache.Cache[V]
	sf    singleflight.Group
}

func New[V any](c keyedcache.Cache[V]) *Group[V] {
	return &Group[V]{cache: c}
}

// GetOrSet behaves like Cache.GetOrSet. While a load for the same storage
// key is in flight, later callers wait for it instead of starting their own.
// The shared load runs with the context of the caller that started it.
func (g *Group[V]) GetOrSet(ctx context.Context, key any, producer func(context.Context) (V, error), opts ...keyedcache.SetOption) (V, error) {
	if v, ok := g.cache.Get(ctx, key); ok {
		return v, nil
	}
	res, err, _ := g.sf.Do(g.cache.BuildKey(key), func() (any, error) {
		return g.cache.GetOrSet(ctx, key, producer, opts...)
	})
	if err != nil {
		var zero V
		return zero, err
	}
	v, _ := res.(V)
	return v, nil
}

// Forget drops an in-flight load so the next caller starts a fresh one.
func (g *Group[V]) Forget(key any) {
	g.sf.Forget(g.cache.BuildKey(key))
}

// Cache returns the wrapped cache.
func (g *Group[V]) Cache() keyedcache.Cache[V] { return g.cache }
