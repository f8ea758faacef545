// Package keys derives canonical, hashable cache keys from fingerprint tuples.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/fxamacker/cbor/v2"
)

const (
	// MaxParts bounds the number of top-level fingerprint parts.
	MaxParts = 64
	// MaxDepth bounds nesting inside a single part (also stops cyclic values).
	MaxDepth = 32

	hashLen = 16 // bytes of sha256 kept in a key
)

var (
	ErrTooManyParts = errors.New("too many fingerprint parts")
	ErrTooDeep      = errors.New("fingerprint nested too deeply")
)

// UnsupportedError reports a fingerprint value that has no stable encoding.
type UnsupportedError struct {
	Path   string
	Kind   reflect.Kind
	Reason string
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("%s: unsupported kind %s", e.Path, e.Kind)
}

var encMode = func() cbor.EncMode {
	eo := cbor.CoreDetEncOptions()
	eo.Time = cbor.TimeRFC3339Nano
	em, err := eo.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Canonical returns the RFC 8949 core deterministic CBOR encoding of parts.
// Equal values encode to equal bytes regardless of integer or float width.
func Canonical(parts []any) ([]byte, error) {
	if len(parts) > MaxParts {
		return nil, ErrTooManyParts
	}
	for i, p := range parts {
		if err := check(reflect.ValueOf(p), "["+strconv.Itoa(i)+"]", 0); err != nil {
			return nil, err
		}
	}
	if parts == nil {
		parts = []any{}
	}
	return encMode.Marshal(parts)
}

// Hash returns a short hex digest of b.
func Hash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:hashLen])
}

// Prefixes returns the hash of every prefix of parts, from the empty prefix up
// to parts itself (len(parts)+1 entries). The last element is the
// fingerprint hash.
func Prefixes(parts []any) ([]string, error) {
	if _, err := Canonical(parts); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(parts)+1)
	for i := 0; i <= len(parts); i++ {
		b, err := encMode.Marshal(append([]any{}, parts[:i]...))
		if err != nil {
			return nil, err
		}
		out = append(out, Hash(b))
	}
	return out, nil
}

func check(v reflect.Value, path string, depth int) error {
	if depth > MaxDepth {
		return ErrTooDeep
	}
	if !v.IsValid() {
		return nil // nil interface
	}
	switch v.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return nil
	case reflect.Uintptr:
		return &UnsupportedError{Path: path, Kind: v.Kind(), Reason: "uintptr is an address, not a value"}
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return &UnsupportedError{Path: path, Kind: v.Kind(), Reason: "non-finite float"}
		}
		return nil
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := check(v.Index(i), path+"["+strconv.Itoa(i)+"]", depth+1); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			p := fmt.Sprintf("%s[%v]", path, iter.Key())
			if err := check(iter.Key(), p, depth+1); err != nil {
				return err
			}
			if err := check(iter.Value(), p, depth+1); err != nil {
				return err
			}
		}
		return nil
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return check(v.Elem(), path, depth+1)
	case reflect.Struct:
		// time.Time and friends marshal themselves; only exported fields are encoded.
		if _, ok := v.Interface().(cbor.Marshaler); ok {
			return nil
		}
		if v.Type().PkgPath() == "time" {
			return nil
		}
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if err := check(v.Field(i), path+"."+t.Field(i).Name, depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return &UnsupportedError{Path: path, Kind: v.Kind()}
	}
}
