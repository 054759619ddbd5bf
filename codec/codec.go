// Package codec holds value encoders used by keyedcache to turn V into the
// bytes handed to a provider and back.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
