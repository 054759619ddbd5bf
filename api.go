package keyedcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/keyedcache/codec"
	"github.com/unkn0wn-root/keyedcache/dependency"
	gen "github.com/unkn0wn-root/keyedcache/genstore"
	pr "github.com/unkn0wn-root/keyedcache/provider"
)

// SetCostFunc reports the cost of one stored entry for cost-aware providers.
type SetCostFunc func(storageKey string, raw []byte) int64

// Cache is the provider-agnostic cache facade. V is the caller's value type.
//
// Keys are arbitrary values normalized by BuildKey. A miss is always reported
// as ok == false (or Result.Hit == false), never as a zero V. Backend failures
// surface as misses, false returns or failed keys; they are logged and
// reported to Hooks, not returned as errors.
type Cache[V any] interface {
	Enabled() bool
	Close(context.Context) error

	// BuildKey returns the storage key for key (KeyPrefix included).
	BuildKey(key any) string

	// Single
	Get(ctx context.Context, key any) (v V, ok bool)
	Exists(ctx context.Context, key any) bool
	Set(ctx context.Context, key any, value V, opts ...SetOption) bool
	Add(ctx context.Context, key any, value V, opts ...SetOption) bool
	Delete(ctx context.Context, key any) bool
	Flush(ctx context.Context) bool

	// Batch (results follow the order of the input; failed keys are raw keys)
	MultiGet(ctx context.Context, keys []any) []Result[V]
	MultiSet(ctx context.Context, items []Item[V], opts ...SetOption) (failed []any)
	MultiAdd(ctx context.Context, items []Item[V], opts ...SetOption) (failed []any)

	// GetOrSet returns the cached value or stores and returns producer's.
	// A failed store is reported, not returned. Not single-flight; see package flight.
	GetOrSet(ctx context.Context, key any, producer func(context.Context) (V, error), opts ...SetOption) (V, error)

	// InvalidateTags bumps the generation of every tag, turning entries that
	// carry a dependency.Tag on any of them into misses.
	InvalidateTags(ctx context.Context, tags ...string) error
}

// Item is one key/value pair of a batch write.
type Item[V any] struct {
	Key   any
	Value V
}

// Result is one slot of MultiGet, aligned with the requested keys.
type Result[V any] struct {
	Key   any
	Value V
	Hit   bool
}

// Options configure a Cache.
// Provider is required, and Codec unless a Serializer is given.
type Options[V any] struct {
	// Required
	Provider pr.Provider
	Codec    c.Codec[V]

	KeyPrefix string // prepended to every storage key, e.g. "books:"

	// Serializer replaces the default envelope (codec bytes + dependency).
	Serializer Serializer[V]
	// DisableSerialization stores codec bytes as-is. Dependencies are ignored.
	DisableSerialization bool

	DefaultTTL     time.Duration // Set/GetOrSet without WithTTL; 0 => never expire
	GenStore       gen.GenStore  // nil => LocalGenStore owned (and closed) by the cache
	Logger         Logger        // nil => NopLogger
	Hooks          Hooks         // nil => NopHooks
	ComputeSetCost SetCostFunc   // default 1
	Disabled       bool          // reads miss, writes are no-ops reporting success
	Clock          func() time.Time
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}

// SetOption tunes a single write.
type SetOption func(*setOptions)

type setOptions struct {
	ttl time.Duration
	dep dependency.Dependency
}

// WithTTL sets the entry lifetime. 0 means never expire.
func WithTTL(d time.Duration) SetOption {
	return func(o *setOptions) { o.ttl = d }
}

// WithDependency attaches dep to the written entry. It is evaluated once per
// call; batch writes share the captured state.
func WithDependency(dep dependency.Dependency) SetOption {
	return func(o *setOptions) { o.dep = dep }
}

func applySetOptions(ttl time.Duration, opts []SetOption) setOptions {
	o := setOptions{ttl: ttl}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
