// Package keyedcache implements a provider-agnostic cache facade.
// It normalizes arbitrary keys and serializes values together with an
// optional dependency. Storage is delegated to a pluggable provider.
//
// Components:
//   - Provider: byte store with TTL (memory, Ristretto, BigCache, Redis, SQLite).
//   - Codec[V]: (de)serializes V <-> []byte.
//   - Serializer[V]: frames codec bytes and the dependency into one payload.
//     The default envelope can be replaced or disabled.
//   - Dependency: snapshot taken at write, compared at read. A changed
//     dependency turns the read into a miss.
//   - GenStore: tag generations for dependency.Tag and InvalidateTags.
//     Local (in-process) by default, Redis for multi-replica setups.
//
// Keys:
//
//	<prefix><key>     - key is ASCII alphanumeric and at most 32 bytes
//	<prefix><digest>  - anything else: 32 hex chars of SHA-256 over a
//	                    canonical (CBOR core deterministic) encoding
//
// Read-through:
//
//	book, err := cache.GetOrSet(ctx, bookID, loadBook,
//		keyedcache.WithTTL(time.Hour),
//		keyedcache.WithDependency(dependency.NewTag("author:7")))
//	...
//	_ = cache.InvalidateTags(ctx, "author:7") // after the author changes
package keyedcache
