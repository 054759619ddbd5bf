// Package provider defines the storage abstraction used by keyedcache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key (no prepended/appended
// metadata, no re-encoding, no mutation). If a store performs internal transforms
// (e.g., compression), they MUST be fully reversed.
//
// Keys handed to a provider are already normalized and prefixed by keyedcache.
// Providers only need the primitives of Provider; stores with native multi-key
// commands may also implement BatchGetter, BatchSetter and BatchAdder, which the
// cache prefers over looping the single-key calls.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs.
// Must be safe for concurrent use. A ttl <= 0 means "no expiry".
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value, overwriting any existing entry and its expiry.
	// May ignore cost if unsupported.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Add stores value only if key is absent. Returns ok=false, err=nil when
	// the key already exists. Atomicity is up to the implementation.
	Add(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort). Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// Flush removes every entry the provider owns.
	Flush(ctx context.Context) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Entry is one item of a batch write.
type Entry struct {
	Key   string
	Value []byte
	Cost  int64
}

// BatchGetter fetches many keys in one round trip.
// Missing keys are simply absent from the returned map.
type BatchGetter interface {
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
}

// BatchSetter writes many entries in one round trip and reports the keys
// that were not stored. A non-nil error means the whole batch failed.
type BatchSetter interface {
	SetMany(ctx context.Context, entries []Entry, ttl time.Duration) (failed []string, err error)
}

// Exister answers presence without transferring the value.
type Exister interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// BatchAdder is the batch form of Add; keys already present are failed.
type BatchAdder interface {
	AddMany(ctx context.Context, entries []Entry, ttl time.Duration) (failed []string, err error)
}
