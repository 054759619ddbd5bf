package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// MaxVerbatim is the longest alphanumeric key stored as-is.
const MaxVerbatim = 32

// canonical encodes structured keys with RFC 8949 Core Deterministic rules,
// so maps hash the same regardless of iteration order.
var canonical = mustEncMode()

func mustEncMode() cbor.EncMode {
	eo := cbor.CoreDetEncOptions()
	eo.Time = cbor.TimeRFC3339Nano
	em, err := eo.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// Build returns prefix + the normalized form of raw.
// Short alphanumeric strings are kept verbatim; everything else becomes the
// hex of the first 128 bits of a SHA-256 digest over a canonical encoding.
func Build(prefix string, raw any) string {
	if s, ok := raw.(string); ok && Verbatim(s) {
		return prefix + s
	}
	return prefix + Digest(raw)
}

// Verbatim reports whether s may be used as a key without hashing.
func Verbatim(s string) bool {
	if len(s) == 0 || len(s) > MaxVerbatim {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

// Digest hashes the canonical encoding of raw. Strings hash their bytes
// under a "s:" tag and other values their CBOR encoding under "c:", so
// the string "5" and the int 5 never share a digest.
func Digest(raw any) string {
	h := sha256.New()
	switch v := raw.(type) {
	case string:
		h.Write([]byte("s:"))
		h.Write([]byte(v))
	case []byte:
		h.Write([]byte("b:"))
		h.Write(v)
	default:
		b, err := canonical.Marshal(raw)
		if err != nil {
			// funcs, channels and friends; stable within one process only
			h.Write([]byte("f:"))
			h.Write([]byte(fmt.Sprintf("%T:%#v", raw, raw)))
		} else {
			h.Write([]byte("c:"))
			h.Write(b)
		}
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
