package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version   byte = 1
	kindEntry byte = 1

	hdrLen = 4 + 1 + 1 + 4
)

var (
	ErrCorrupt = errors.New("keyedcache: corrupt entry")
	magic4     = [...]byte{'K', 'E', 'Y', 'C'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry: magic(4) | ver(1) | kind(1=entry) | dlen(u32 be) | dep(dlen) | vlen(u32 be) | payload(vlen)
//
// dlen == 0 means the value carries no dependency.
func EncodeEntry(payload, dep []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(dep) + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u4 [4]byte

	binary.BigEndian.PutUint32(u4[:], uint32(len(dep)))
	buf.Write(u4[:])
	buf.Write(dep)

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])
	buf.Write(payload)

	return buf.Bytes()
}

// DecodeEntry splits an entry into its value payload and dependency bytes.
// The returned slices alias b. Trailing bytes are rejected.
func DecodeEntry(b []byte) (payload, dep []byte, err error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return nil, nil, ErrCorrupt
	}
	off := 6

	dlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if dlen < 0 || dlen > len(b)-off {
		return nil, nil, ErrCorrupt
	}
	if dlen > 0 {
		dep = b[off : off+dlen]
	}
	off += dlen

	if off+4 > len(b) {
		return nil, nil, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // overflow-safe, strict framing
		return nil, nil, ErrCorrupt
	}

	return b[off : off+vlen], dep, nil
}
