package keyedcache

import (
	"context"
	"time"

	"github.com/unkn0wn-root/keyedcache/dependency"
	gen "github.com/unkn0wn-root/keyedcache/genstore"
	"github.com/unkn0wn-root/keyedcache/internal/keys"
	pr "github.com/unkn0wn-root/keyedcache/provider"
)

type cache[V any] struct {
	prefix         string
	provider       pr.Provider
	ser            Serializer[V]
	raw            bool // serialization disabled; dependencies are dropped
	log            Logger
	hooks          Hooks
	enabled        bool
	defaultTTL     time.Duration
	computeSetCost SetCostFunc
	gen            gen.GenStore
	ownGen         bool
	now            func() time.Time
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Provider == nil {
		return nil, ErrNilProvider
	}
	if opts.Serializer != nil && opts.DisableSerialization {
		return nil, ErrSerializerConflict
	}
	if opts.Serializer == nil && opts.Codec == nil {
		return nil, ErrNilCodec
	}

	c := &cache[V]{
		prefix:     opts.KeyPrefix,
		provider:   opts.Provider,
		enabled:    !opts.Disabled,
		defaultTTL: opts.DefaultTTL,
		raw:        opts.DisableSerialization,
	}

	switch {
	case opts.Serializer != nil:
		c.ser = opts.Serializer
	case opts.DisableSerialization:
		c.ser = passthrough[V]{codec: opts.Codec}
	default:
		c.ser = envelope[V]{codec: opts.Codec}
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})

	if opts.ComputeSetCost != nil {
		c.computeSetCost = opts.ComputeSetCost
	} else {
		c.computeSetCost = func(string, []byte) int64 { return 1 }
	}

	if opts.Clock != nil {
		c.now = opts.Clock
	} else {
		c.now = time.Now
	}

	if opts.GenStore != nil {
		c.gen = opts.GenStore
	} else {
		// no pruning: a forgotten tag generation would revive stale entries
		c.gen = gen.NewLocalGenStore(0, 0)
		c.ownGen = true
	}

	return c, nil
}

func (c *cache[V]) Enabled() bool { return c.enabled }

func (c *cache[V]) Close(ctx context.Context) error {
	// Close gen store first (best effort)
	if c.ownGen {
		_ = c.gen.Close(ctx)
	}
	return c.provider.Close(ctx)
}

func (c *cache[V]) BuildKey(key any) string {
	return keys.Build(c.prefix, key)
}

func (c *cache[V]) Get(ctx context.Context, key any) (V, bool) {
	var zero V
	if !c.enabled {
		return zero, false
	}
	k := c.BuildKey(key)
	raw, ok, err := c.provider.Get(ctx, k)
	if err != nil {
		c.backendError("get", k, err)
		return zero, false
	}
	if !ok {
		return zero, false
	}
	return c.decode(ctx, k, raw)
}

// Exists checks presence only: no decode, no dependency check.
func (c *cache[V]) Exists(ctx context.Context, key any) bool {
	if !c.enabled {
		return false
	}
	k := c.BuildKey(key)
	if ex, ok := c.provider.(pr.Exister); ok {
		found, err := ex.Exists(ctx, k)
		if err != nil {
			c.backendError("exists", k, err)
			return false
		}
		return found
	}
	_, found, err := c.provider.Get(ctx, k)
	if err != nil {
		c.backendError("exists", k, err)
		return false
	}
	return found
}

func (c *cache[V]) MultiGet(ctx context.Context, rawKeys []any) []Result[V] {
	out := make([]Result[V], len(rawKeys))
	for i, k := range rawKeys {
		out[i].Key = k
	}
	if !c.enabled || len(rawKeys) == 0 {
		return out
	}

	order, slots := c.storageKeys(rawKeys)
	found := c.fetch(ctx, order)
	for _, k := range order {
		raw, ok := found[k]
		if !ok {
			continue
		}
		v, hit := c.decode(ctx, k, raw)
		for _, i := range slots[k] {
			out[i].Value, out[i].Hit = v, hit
		}
	}
	return out
}

func (c *cache[V]) Set(ctx context.Context, key any, value V, opts ...SetOption) bool {
	if !c.enabled {
		return true
	}
	o := applySetOptions(c.defaultTTL, opts)
	k := c.BuildKey(key)
	b, ok := c.encode(ctx, k, value, o.dep)
	if !ok {
		return false
	}
	ok, err := c.provider.Set(ctx, k, b, c.computeSetCost(k, b), o.ttl)
	if err != nil {
		c.backendError("set", k, err)
		return false
	}
	if !ok {
		c.log.Debug("Set rejected by provider (pressure)", Fields{"key": k})
		c.hooks.ProviderSetRejected(k, "set")
		return false
	}
	return true
}

func (c *cache[V]) Add(ctx context.Context, key any, value V, opts ...SetOption) bool {
	if !c.enabled {
		return true
	}
	o := applySetOptions(0, opts)
	k := c.BuildKey(key)
	b, ok := c.encode(ctx, k, value, o.dep)
	if !ok {
		return false
	}
	ok, err := c.provider.Add(ctx, k, b, c.computeSetCost(k, b), o.ttl)
	if err != nil {
		c.backendError("add", k, err)
		return false
	}
	return ok
}

func (c *cache[V]) MultiSet(ctx context.Context, items []Item[V], opts ...SetOption) []any {
	return c.multiWrite(ctx, items, applySetOptions(0, opts), false)
}

func (c *cache[V]) MultiAdd(ctx context.Context, items []Item[V], opts ...SetOption) []any {
	return c.multiWrite(ctx, items, applySetOptions(0, opts), true)
}

func (c *cache[V]) Delete(ctx context.Context, key any) bool {
	if !c.enabled {
		return true
	}
	k := c.BuildKey(key)
	if err := c.provider.Del(ctx, k); err != nil {
		c.backendError("del", k, err)
		return false
	}
	return true
}

func (c *cache[V]) Flush(ctx context.Context) bool {
	if !c.enabled {
		return true
	}
	if err := c.provider.Flush(ctx); err != nil {
		c.backendError("flush", "", err)
		return false
	}
	return true
}

func (c *cache[V]) GetOrSet(ctx context.Context, key any, producer func(context.Context) (V, error), opts ...SetOption) (V, error) {
	var zero V
	if producer == nil {
		return zero, ErrNilProducer
	}
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}
	v, err := producer(ctx)
	if err != nil {
		return zero, err
	}
	if !c.Set(ctx, key, v, opts...) {
		k := c.BuildKey(key)
		c.log.Warn("GetOrSet: failed to store produced value", Fields{"key": k})
		c.hooks.WriteFailed(k)
	}
	return v, nil
}

func (c *cache[V]) InvalidateTags(ctx context.Context, tags ...string) error {
	if !c.enabled {
		return nil
	}
	var ie InvalidateError
	for _, tag := range tags {
		g, err := c.gen.Bump(ctx, tag)
		if err != nil {
			c.log.Error("gen bump error", Fields{"tag": tag, "err": err})
			c.hooks.GenBumpError(tag, err)
			ie.add(tag, err)
			continue
		}
		c.log.Debug("invalidated tag (bumped gen)", Fields{"tag": tag, "newGen": g})
	}
	if len(ie.Tags) > 0 {
		return &ie
	}
	return nil
}

func (c *cache[V]) env() dependency.Env {
	return dependency.Env{Gens: c.gen, Now: c.now}
}

// decode turns stored bytes into a value. Undecodable entries and entries
// whose dependency changed are deleted and reported as misses.
func (c *cache[V]) decode(ctx context.Context, k string, raw []byte) (V, bool) {
	var zero V
	v, dep, err := c.ser.Deserialize(raw)
	if err != nil {
		reason := corruptReason(err)
		c.log.Debug("dropping undecodable entry", Fields{"key": k, "reason": reason, "err": err})
		c.hooks.CorruptEntry(k, reason)
		c.selfHeal(ctx, k)
		return zero, false
	}
	if dep == nil {
		return v, true
	}
	changed, err := dep.Changed(ctx, c.env())
	if err != nil {
		// never serve a value we cannot vouch for
		c.log.Warn("dependency check failed; treating as changed", Fields{"key": k, "kind": dep.Kind(), "err": err})
		changed = true
	}
	if changed {
		c.hooks.DependencyChanged(k)
		c.selfHeal(ctx, k)
		return zero, false
	}
	return v, true
}

// encode evaluates dep and serializes value. Failures are logged and make
// the write fail.
func (c *cache[V]) encode(ctx context.Context, k string, value V, dep dependency.Dependency) ([]byte, bool) {
	dep, ok := c.evaluate(ctx, dep)
	if !ok {
		return nil, false
	}
	return c.serialize(k, value, dep)
}

func (c *cache[V]) evaluate(ctx context.Context, dep dependency.Dependency) (dependency.Dependency, bool) {
	if dep == nil || c.raw {
		return nil, true
	}
	ev, err := dep.Evaluate(ctx, c.env())
	if err != nil {
		c.log.Warn("dependency evaluation failed; write skipped", Fields{"kind": dep.Kind(), "err": err})
		return nil, false
	}
	return ev, true
}

func (c *cache[V]) serialize(k string, value V, dep dependency.Dependency) ([]byte, bool) {
	b, err := c.ser.Serialize(value, dep)
	if err != nil {
		c.log.Warn("serialize failed; write skipped", Fields{"key": k, "err": err})
		return nil, false
	}
	return b, true
}

func (c *cache[V]) selfHeal(ctx context.Context, k string) {
	if err := c.provider.Del(ctx, k); err != nil {
		c.log.Debug("self-heal delete failed", Fields{"key": k, "err": err})
	}
}

func (c *cache[V]) backendError(op, k string, err error) {
	c.log.Warn("backend error", Fields{"op": op, "key": k, "err": err})
	c.hooks.BackendError(op, k, err)
}

// storageKeys normalizes rawKeys. order holds each storage key once, in
// first-seen order; slots maps it back to every input position.
func (c *cache[V]) storageKeys(rawKeys []any) (order []string, slots map[string][]int) {
	order = make([]string, 0, len(rawKeys))
	slots = make(map[string][]int, len(rawKeys))
	for i, rk := range rawKeys {
		k := c.BuildKey(rk)
		if _, seen := slots[k]; !seen {
			order = append(order, k)
		}
		slots[k] = append(slots[k], i)
	}
	return order, slots
}

// fetch reads many keys, preferring a native batch read. A failed batch
// falls back to single reads so one bad key cannot hide the others.
func (c *cache[V]) fetch(ctx context.Context, ks []string) map[string][]byte {
	if bg, ok := c.provider.(pr.BatchGetter); ok {
		m, err := bg.GetMany(ctx, ks)
		if err == nil {
			return m
		}
		c.backendError("multi_get", "", err)
	}
	out := make(map[string][]byte, len(ks))
	for _, k := range ks {
		raw, ok, err := c.provider.Get(ctx, k)
		if err != nil {
			c.backendError("get", k, err)
			continue
		}
		if ok {
			out[k] = raw
		}
	}
	return out
}

// multiWrite implements MultiSet and MultiAdd. It returns the raw keys of
// the items that were not stored, in input order.
func (c *cache[V]) multiWrite(ctx context.Context, items []Item[V], o setOptions, add bool) []any {
	if !c.enabled || len(items) == 0 {
		return nil
	}

	failed := make([]bool, len(items))
	dep, ok := c.evaluate(ctx, o.dep)
	if !ok {
		for i := range failed {
			failed[i] = true
		}
		return collectFailed(items, failed)
	}

	// One entry per storage key. Set keeps the last value (repeated Set
	// semantics); Add keeps the first and fails the rest.
	entries := make([]pr.Entry, 0, len(items))
	// storage key -> index in entries, and -> indices in items
	pos := make(map[string]int, len(items))
	owners := make(map[string][]int, len(items))
	for i, it := range items {
		k := c.BuildKey(it.Key)
		b, ok := c.serialize(k, it.Value, dep)
		if !ok {
			failed[i] = true
			continue
		}
		e := pr.Entry{Key: k, Value: b, Cost: c.computeSetCost(k, b)}
		if j, dup := pos[k]; dup {
			if add {
				failed[i] = true
				continue
			}
			entries[j] = e
		} else {
			pos[k] = len(entries)
			entries = append(entries, e)
		}
		owners[k] = append(owners[k], i)
	}

	for _, k := range c.writeEntries(ctx, entries, o.ttl, add) {
		for _, i := range owners[k] {
			failed[i] = true
		}
	}
	return collectFailed(items, failed)
}

// writeEntries hands entries to the provider and returns the failed storage keys.
func (c *cache[V]) writeEntries(ctx context.Context, entries []pr.Entry, ttl time.Duration, add bool) []string {
	if len(entries) == 0 {
		return nil
	}
	op := "multi_set"
	if add {
		op = "multi_add"
	}

	var batch func(context.Context, []pr.Entry, time.Duration) ([]string, error)
	if add {
		if ba, ok := c.provider.(pr.BatchAdder); ok {
			batch = ba.AddMany
		}
	} else if bs, ok := c.provider.(pr.BatchSetter); ok {
		batch = bs.SetMany
	}
	if batch != nil {
		failed, err := batch(ctx, entries, ttl)
		if err == nil {
			return failed
		}
		c.backendError(op, "", err)
		all := make([]string, len(entries))
		for i, e := range entries {
			all[i] = e.Key
		}
		return all
	}

	var failed []string
	for _, e := range entries {
		var ok bool
		var err error
		if add {
			ok, err = c.provider.Add(ctx, e.Key, e.Value, e.Cost, ttl)
		} else {
			ok, err = c.provider.Set(ctx, e.Key, e.Value, e.Cost, ttl)
		}
		switch {
		case err != nil:
			c.backendError(op, e.Key, err)
			failed = append(failed, e.Key)
		case !ok:
			if !add {
				c.hooks.ProviderSetRejected(e.Key, op)
			}
			failed = append(failed, e.Key)
		}
	}
	return failed
}

func collectFailed[V any](items []Item[V], failed []bool) []any {
	var out []any
	for i, f := range failed {
		if f {
			out = append(out, items[i].Key)
		}
	}
	return out
}
