package keyedcache

import (
	"errors"
	"fmt"

	c "github.com/unkn0wn-root/keyedcache/codec"
	"github.com/unkn0wn-root/keyedcache/dependency"
	"github.com/unkn0wn-root/keyedcache/internal/wire"
)

// Serializer turns a value and its (already evaluated) dependency into the
// bytes handed to the provider, and back. dep may be nil on both sides.
type Serializer[V any] interface {
	Serialize(value V, dep dependency.Dependency) ([]byte, error)
	Deserialize(b []byte) (V, dependency.Dependency, error)
}

// SerializerFuncs adapts a pair of functions to Serializer.
type SerializerFuncs[V any] struct {
	Encode func(value V, dep dependency.Dependency) ([]byte, error)
	Decode func(b []byte) (V, dependency.Dependency, error)
}

func (f SerializerFuncs[V]) Serialize(value V, dep dependency.Dependency) ([]byte, error) {
	return f.Encode(value, dep)
}

func (f SerializerFuncs[V]) Deserialize(b []byte) (V, dependency.Dependency, error) {
	return f.Decode(b)
}

// envelope is the default: codec bytes and the encoded dependency framed by wire.
type envelope[V any] struct {
	codec c.Codec[V]
}

func (s envelope[V]) Serialize(value V, dep dependency.Dependency) ([]byte, error) {
	payload, err := s.codec.Encode(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	depb, err := dependency.Marshal(dep)
	if err != nil {
		return nil, err
	}
	return wire.EncodeEntry(payload, depb), nil
}

func (s envelope[V]) Deserialize(b []byte) (V, dependency.Dependency, error) {
	var zero V
	payload, depb, err := wire.DecodeEntry(b)
	if err != nil {
		return zero, nil, err
	}
	dep, err := dependency.Unmarshal(depb)
	if err != nil {
		return zero, nil, err
	}
	v, err := s.codec.Decode(payload)
	if err != nil {
		return zero, nil, fmt.Errorf("decode value: %w", err)
	}
	return v, dep, nil
}

// passthrough stores codec bytes verbatim and never carries a dependency.
type passthrough[V any] struct {
	codec c.Codec[V]
}

func (s passthrough[V]) Serialize(value V, _ dependency.Dependency) ([]byte, error) {
	return s.codec.Encode(value)
}

func (s passthrough[V]) Deserialize(b []byte) (V, dependency.Dependency, error) {
	v, err := s.codec.Decode(b)
	return v, nil, err
}

// corruptReason classifies a Deserialize error for Hooks.CorruptEntry.
func corruptReason(err error) string {
	switch {
	case errors.Is(err, wire.ErrCorrupt):
		return "corrupt"
	case errors.Is(err, dependency.ErrUnknownKind):
		return "unknown_dependency"
	default:
		return "decode"
	}
}
