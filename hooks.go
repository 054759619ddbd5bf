package keyedcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// An entry could not be decoded and was deleted on read.
	// reason ∈ {"corrupt", "unknown_dependency", "decode"}
	CorruptEntry(storageKey, reason string)

	// An entry's dependency reported a change; the read missed and the
	// entry was deleted.
	DependencyChanged(storageKey string)

	// Provider returned ok=false on Set (backpressure/eviction).
	// op ∈ {"set", "multi_set"}
	ProviderSetRejected(storageKey, op string)

	// Provider returned an error. storageKey is empty for whole-batch
	// and flush failures.
	BackendError(op, storageKey string, err error)

	// GetOrSet produced a value but could not store it.
	WriteFailed(storageKey string)

	// InvalidateTags could not bump a tag's generation.
	GenBumpError(tag string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) CorruptEntry(string, string)        {}
func (NopHooks) DependencyChanged(string)           {}
func (NopHooks) ProviderSetRejected(string, string) {}
func (NopHooks) BackendError(string, string, error) {}
func (NopHooks) WriteFailed(string)                 {}
func (NopHooks) GenBumpError(string, error)         {}
