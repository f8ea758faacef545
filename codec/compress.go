package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressed payload layout: algo(1) | rawLen(u32 be) | data.
// algo 0 means data is stored as-is because compression did not pay off.
const (
	algoStored byte = 0
	algoLZ4    byte = 1
	algoZstd   byte = 2

	compressHdr = 5

	// DefaultMaxDecoded bounds the size announced by a compressed header.
	DefaultMaxDecoded = 256 << 20
)

var ErrCompressedCorrupt = errors.New("codec: corrupt compressed payload")

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Zstd compresses the output of Inner with zstd. Good ratio; suits external
// stores where bytes cost network and storage.
type Zstd[V any] struct {
	Inner      Codec[V]
	MaxDecoded int // 0 => DefaultMaxDecoded
}

func (c Zstd[V]) Encode(v V) ([]byte, error) {
	raw, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	enc := getZstdEncoder()
	defer zstdEncoderPool.Put(enc)
	return frame(algoZstd, raw, enc.EncodeAll(raw, nil)), nil
}

func (c Zstd[V]) Decode(b []byte) (V, error) {
	var zero V
	raw, err := unframe(b, c.MaxDecoded, func(data []byte, n int) ([]byte, error) {
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		return dec.DecodeAll(data, make([]byte, 0, n))
	})
	if err != nil {
		return zero, err
	}
	return c.Inner.Decode(raw)
}

// LZ4 compresses the output of Inner with LZ4 block compression. Fast; suits
// in-process providers that are bounded by bytes.
type LZ4[V any] struct {
	Inner      Codec[V]
	MaxDecoded int // 0 => DefaultMaxDecoded
}

func (c LZ4[V]) Encode(v V) ([]byte, error) {
	raw, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	dst := make([]byte, lz4.CompressBlockBound(len(raw)))
	n, err := lz4.CompressBlock(raw, dst, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return frame(algoStored, raw, nil), nil // incompressible
	}
	return frame(algoLZ4, raw, dst[:n]), nil
}

func (c LZ4[V]) Decode(b []byte) (V, error) {
	var zero V
	raw, err := unframe(b, c.MaxDecoded, func(data []byte, n int) ([]byte, error) {
		out := make([]byte, n)
		m, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, err
		}
		return out[:m], nil
	})
	if err != nil {
		return zero, err
	}
	return c.Inner.Decode(raw)
}

func frame(algo byte, raw, compressed []byte) []byte {
	// keep raw when compression saves less than 10%
	if algo == algoStored || len(compressed) == 0 || float64(len(compressed)) > float64(len(raw))*0.9 {
		algo, compressed = algoStored, raw
	}
	out := make([]byte, compressHdr+len(compressed))
	out[0] = algo
	binary.BigEndian.PutUint32(out[1:5], uint32(len(raw)))
	copy(out[compressHdr:], compressed)
	return out
}

func unframe(b []byte, maxDecoded int, inflate func(data []byte, n int) ([]byte, error)) ([]byte, error) {
	if len(b) < compressHdr {
		return nil, ErrCompressedCorrupt
	}
	if maxDecoded <= 0 {
		maxDecoded = DefaultMaxDecoded
	}
	n := int(binary.BigEndian.Uint32(b[1:5]))
	if n > maxDecoded {
		return nil, &TooLargeError{Size: n, Max: maxDecoded}
	}
	data := b[compressHdr:]
	switch b[0] {
	case algoStored:
		if len(data) != n {
			return nil, ErrCompressedCorrupt
		}
		return data, nil
	case algoLZ4, algoZstd:
		raw, err := inflate(data, n)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompressedCorrupt, err)
		}
		if len(raw) != n {
			return nil, ErrCompressedCorrupt
		}
		return raw, nil
	default:
		return nil, ErrCompressedCorrupt
	}
}
