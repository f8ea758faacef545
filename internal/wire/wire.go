package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version   byte = 1
	kindEntry byte = 1

	// MaxGens bounds the generation vector carried by an entry.
	MaxGens = 255
)

var (
	ErrCorrupt = errors.New("rendercache: corrupt entry")
	ErrTooMany = errors.New("rendercache: too many generations")
	magic4     = [...]byte{'R', 'N', 'D', 'C'}
)

// Entry is the decoded form of a stored render.
type Entry struct {
	Gens      []uint64
	Width     uint32
	Height    uint32
	CreatedAt time.Time
	Payload   []byte
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry:
//
//	magic(4) | ver(1) | kind(1) | ngen(1) | gen(u64 be)*ngen
//	w(u32 be) | h(u32 be) | created(i64 be, unix nano) | vlen(u32 be) | payload(vlen)
func EncodeEntry(e Entry) ([]byte, error) {
	if len(e.Gens) > MaxGens {
		return nil, ErrTooMany
	}
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 1 + 8*len(e.Gens) + 4 + 4 + 8 + 4 + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)
	buf.WriteByte(byte(len(e.Gens)))

	var u8 [8]byte
	var u4 [4]byte

	for _, g := range e.Gens {
		binary.BigEndian.PutUint64(u8[:], g)
		buf.Write(u8[:])
	}

	binary.BigEndian.PutUint32(u4[:], e.Width)
	buf.Write(u4[:])
	binary.BigEndian.PutUint32(u4[:], e.Height)
	buf.Write(u4[:])

	var created int64
	if !e.CreatedAt.IsZero() {
		created = e.CreatedAt.UnixNano()
	}
	binary.BigEndian.PutUint64(u8[:], uint64(created))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])
	buf.Write(e.Payload)
	return buf.Bytes(), nil
}

// DecodeEntry parses b strictly: trailing bytes are rejected.
// Payload aliases b.
func DecodeEntry(b []byte) (Entry, error) {
	const hdr = 4 + 1 + 1 + 1
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return Entry{}, ErrCorrupt
	}
	n := int(b[6])
	off := hdr

	if n*8 > len(b)-off {
		return Entry{}, ErrCorrupt
	}
	gens := make([]uint64, n)
	for i := range gens {
		gens[i] = binary.BigEndian.Uint64(b[off : off+8])
		off += 8
	}

	const fixed = 4 + 4 + 8 + 4
	if off+fixed > len(b) {
		return Entry{}, ErrCorrupt
	}
	w := binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	h := binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	created := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // exact: no trailing bytes
		return Entry{}, ErrCorrupt
	}

	e := Entry{
		Gens:    gens,
		Width:   w,
		Height:  h,
		Payload: b[off : off+vlen],
	}
	if created != 0 {
		e.CreatedAt = time.Unix(0, created)
	}
	return e, nil
}

// SameGens reports whether a and b carry the same generation vector.
func SameGens(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
