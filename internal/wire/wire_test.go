package wire

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func mustEncode(t *testing.T, e Entry) []byte {
	t.Helper()
	b, err := EncodeEntry(e)
	if err != nil {
		t.Fatalf("EncodeEntry error: %v", err)
	}
	return b
}

func mustDecode(t *testing.T, b []byte) Entry {
	t.Helper()
	e, err := DecodeEntry(b)
	if err != nil {
		t.Fatalf("DecodeEntry error: %v", err)
	}
	return e
}

func TestEntryRoundTrip(t *testing.T) {
	created := time.Unix(1700000000, 123)
	cases := []Entry{
		{Gens: []uint64{0}, Width: 480, Height: 480},
		{Gens: []uint64{1, 2, 3}, Width: 830, Height: 480, CreatedAt: created, Payload: []byte("png")},
		{Gens: []uint64{math.MaxUint64, 0}, Width: 1, Height: 1, Payload: []byte{0, 1, 2, 3, 4}},
	}
	for _, tc := range cases {
		got := mustDecode(t, mustEncode(t, tc))
		if !SameGens(got.Gens, tc.Gens) {
			t.Fatalf("gens mismatch: got %v want %v", got.Gens, tc.Gens)
		}
		if got.Width != tc.Width || got.Height != tc.Height {
			t.Fatalf("size mismatch: got %dx%d want %dx%d", got.Width, got.Height, tc.Width, tc.Height)
		}
		if !got.CreatedAt.Equal(tc.CreatedAt) {
			t.Fatalf("created mismatch: got %v want %v", got.CreatedAt, tc.CreatedAt)
		}
		if !bytes.Equal(got.Payload, tc.Payload) {
			t.Fatalf("payload mismatch: got %x want %x", got.Payload, tc.Payload)
		}
	}
}

func TestEntryRejectsTrailingBytes(t *testing.T) {
	enc := mustEncode(t, Entry{Gens: []uint64{7}, Width: 1, Height: 1, Payload: []byte("x")})
	enc = append(enc, 0xDE, 0xAD)
	if _, err := DecodeEntry(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestEntryCorruptHeadersAndLengths(t *testing.T) {
	enc := mustEncode(t, Entry{Gens: []uint64{1}, Width: 2, Height: 3, Payload: []byte("abc")})

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, err := DecodeEntry(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, err := DecodeEntry(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	badKind := append([]byte(nil), enc...)
	badKind[5] = kindEntry + 1
	if _, err := DecodeEntry(badKind); err == nil {
		t.Fatalf("expected error on bad kind")
	}

	// ngen announces more generations than present
	badN := append([]byte(nil), enc...)
	badN[6] = 200
	if _, err := DecodeEntry(badN); err == nil {
		t.Fatalf("expected error on bogus ngen")
	}

	// vlen sits after 7 header + 8 gen + 4 w + 4 h + 8 created
	off := 7 + 8 + 4 + 4 + 8
	tooLong := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(tooLong[off:off+4], uint32(len("abc")+1))
	if _, err := DecodeEntry(tooLong); err == nil {
		t.Fatalf("expected error on vlen beyond buffer")
	}

	if _, err := DecodeEntry(enc[:len(enc)-1]); err == nil {
		t.Fatalf("expected error on truncated buffer")
	}
	if _, err := DecodeEntry([]byte("not-wire-format")); err == nil {
		t.Fatalf("expected error on foreign bytes")
	}
}

func TestEncodeRejectsTooManyGens(t *testing.T) {
	if _, err := EncodeEntry(Entry{Gens: make([]uint64, MaxGens+1)}); err != ErrTooMany {
		t.Fatalf("expected ErrTooMany, got %v", err)
	}
	if _, err := EncodeEntry(Entry{Gens: make([]uint64, MaxGens)}); err != nil {
		t.Fatalf("boundary gens should encode: %v", err)
	}
}

func TestEntryZeroCopyPayload(t *testing.T) {
	enc := mustEncode(t, Entry{Gens: []uint64{1}, Payload: []byte("Z")})
	e := mustDecode(t, enc)
	e.Payload[0] = 'Q'
	if mustDecode(t, enc).Payload[0] != 'Q' {
		t.Fatalf("expected zero-copy slice into enc buffer")
	}
}

func TestSameGens(t *testing.T) {
	if !SameGens(nil, []uint64{}) {
		t.Fatalf("empty vectors are equal")
	}
	if SameGens([]uint64{1, 2}, []uint64{1, 3}) || SameGens([]uint64{1}, []uint64{1, 0}) {
		t.Fatalf("different vectors reported equal")
	}
}
