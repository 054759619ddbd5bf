// Package genstore keeps monotonically increasing generation counters.
// keyedcache uses them to back tag dependencies: a tag's generation is
// captured when a value is written and compared again when it is read.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
// Use LocalGenStore (default) for in-process gens, or RedisGenStore to share
// them between replicas.
type GenStore interface {
	// Snapshot returns the current generation. A tag never bumped reads as a
	// stable base value (0 unless the store expires or prunes tags). A store
	// must never hand out a generation for a tag that it returned before a
	// later bump.
	Snapshot(ctx context.Context, key string) (uint64, error)
	// SnapshotMany returns gens for many keys.
	SnapshotMany(ctx context.Context, keys []string) (map[string]uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, key string) (uint64, error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
