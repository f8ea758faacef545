package rendercache

import (
	"strconv"

	"github.com/unkn0wn-root/rendercache/internal/keys"
)

// Fingerprint is an ordered tuple describing the logical state of a render.
// Equal tuples map to equal keys; parts are compared by canonical encoding, so
// int(3) and uint8(3) are the same part, and so are float32(1.5) and
// float64(1.5). An integer and a float are never equal.
//
// Allowed leaves: nil, bool, integers, finite floats, strings, []byte and
// time.Time. Slices, arrays, maps, structs and pointers may nest them.
type Fingerprint []any

// Of builds a Fingerprint from parts.
func Of(parts ...any) Fingerprint { return Fingerprint(parts) }

// Hash returns the 32-char hex digest of the canonical encoding.
func (f Fingerprint) Hash() (string, error) {
	b, err := keys.Canonical(f)
	if err != nil {
		return "", &InvalidKeyError{Err: err}
	}
	return keys.Hash(b), nil
}

// Key identifies one stored artifact: a fingerprint hash plus a bucket size.
type Key struct {
	Fingerprint string
	Width       int
	Height      int
}

func (k Key) String() string {
	return k.Fingerprint + ":" + strconv.Itoa(k.Width) + "x" + strconv.Itoa(k.Height)
}

// resolved carries everything derived from one request.
type resolved struct {
	key        Key
	storageKey string
	genKeys    []string // one per prefix, shortest first
	reqW, reqH float64
}

func (c *cache[A]) resolve(fp Fingerprint, width, height float64) (resolved, error) {
	bw, bh, err := quantize(c.sizing, width, height)
	if err != nil {
		return resolved{}, err
	}
	prefixes, err := keys.Prefixes(fp)
	if err != nil {
		return resolved{}, &InvalidKeyError{Err: err}
	}
	k := Key{Fingerprint: prefixes[len(prefixes)-1], Width: bw, Height: bh}
	gk := make([]string, len(prefixes))
	for i, p := range prefixes {
		gk[i] = c.genKey(p)
	}
	return resolved{
		key:        k,
		storageKey: c.storageKey(k),
		genKeys:    gk,
		reqW:       width,
		reqH:       height,
	}, nil
}

func (c *cache[A]) storageKey(k Key) string {
	return c.entryPrefix() + k.String()
}

// entryPrefix starts every storage key of this namespace.
func (c *cache[A]) entryPrefix() string {
	return "render:" + c.ns + ":"
}

func (c *cache[A]) genKey(prefixHash string) string {
	return c.ns + ":" + prefixHash
}
