// Package dependency defines conditions whose change invalidates a cached value.
//
// A Dependency is evaluated when a value is written (capturing a snapshot of
// the state it tracks) and stored next to the value. On read it is asked
// whether that state has changed since; a changed dependency turns the read
// into a miss.
//
// Dependencies travel through the backend, so every kind is registered under
// a stable name and its state is encoded with msgpack. Built-in kinds:
//
//	file      - modification time of a path
//	deadline  - a point in time after which the value is stale
//	tag       - generations of named tags (see genstore)
//	chain     - a set of dependencies, changed when any (or all) change
package dependency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/unkn0wn-root/keyedcache/genstore"
)

var ErrUnknownKind = errors.New("dependency: unknown kind")

// Dependency is a snapshot-and-compare capability.
type Dependency interface {
	// Kind is the registry name used to decode the stored state.
	Kind() string
	// Evaluate captures the current state into a new Dependency, which is
	// what gets stored. The receiver is left untouched, so one instance may be
	// shared by concurrent writes.
	Evaluate(ctx context.Context, env Env) (Dependency, error)
	// Changed compares the current state with the captured one.
	Changed(ctx context.Context, env Env) (bool, error)
}

// Env is what a dependency may consult while evaluating.
type Env struct {
	// Gens backs tag dependencies. May be nil when no tags are used.
	Gens genstore.GenStore
	// Now defaults to time.Now.
	Now func() time.Time
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

var (
	regMu    sync.RWMutex
	registry = map[string]func() Dependency{}
)

// Register makes a dependency kind decodable. ctor must return a pointer to
// a zero value. Registering a kind twice panics.
func Register(kind string, ctor func() Dependency) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, dup := registry[kind]; dup {
		panic("dependency: kind registered twice: " + kind)
	}
	registry[kind] = ctor
}

func init() {
	Register(kindFile, func() Dependency { return &File{} })
	Register(kindDeadline, func() Dependency { return &Deadline{} })
	Register(kindTag, func() Dependency { return &Tag{} })
	Register(kindChain, func() Dependency { return &Chain{} })
}

type envelope struct {
	Kind  string             `msgpack:"k"`
	State msgpack.RawMessage `msgpack:"s"`
}

// Marshal encodes d together with its kind. A nil dependency encodes to nil.
func Marshal(d Dependency) ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	state, err := msgpack.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("dependency: encode %s: %w", d.Kind(), err)
	}
	return msgpack.Marshal(envelope{Kind: d.Kind(), State: state})
}

// Unmarshal decodes bytes produced by Marshal. Empty input yields (nil, nil).
func Unmarshal(b []byte) (Dependency, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var env envelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("dependency: decode envelope: %w", err)
	}
	regMu.RLock()
	ctor, ok := registry[env.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
	d := ctor()
	if err := msgpack.Unmarshal(env.State, d); err != nil {
		return nil, fmt.Errorf("dependency: decode %s: %w", env.Kind, err)
	}
	return d, nil
}
