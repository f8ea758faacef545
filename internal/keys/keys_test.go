package keys

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

func mustCanonical(t *testing.T, parts ...any) []byte {
	t.Helper()
	b, err := Canonical(parts)
	if err != nil {
		t.Fatalf("Canonical(%v): %v", parts, err)
	}
	return b
}

func TestCanonicalWidthAgnostic(t *testing.T) {
	a := Hash(mustCanonical(t, "carat", int8(5), float32(1.5)))
	b := Hash(mustCanonical(t, "carat", int64(5), float64(1.5)))
	if a != b {
		t.Fatalf("equal values with different widths hashed differently: %s vs %s", a, b)
	}
}

func TestCanonicalMapOrderIndependent(t *testing.T) {
	m1 := map[string]int{"x": 1, "y": 2, "z": 3}
	m2 := map[string]int{"z": 3, "y": 2, "x": 1}
	for i := 0; i < 20; i++ {
		if Hash(mustCanonical(t, m1)) != Hash(mustCanonical(t, m2)) {
			t.Fatalf("map encoding is order dependent")
		}
	}
}

func TestCanonicalOrderSensitive(t *testing.T) {
	if Hash(mustCanonical(t, "carat", "price")) == Hash(mustCanonical(t, "price", "carat")) {
		t.Fatalf("tuple order must change the hash")
	}
}

func TestCanonicalRejects(t *testing.T) {
	type cyclic struct{ Next *cyclic }
	loop := &cyclic{}
	loop.Next = loop

	cases := map[string][]any{
		"func":       {func() {}},
		"chan":       {make(chan int)},
		"nan":        {math.NaN()},
		"inf":        {math.Inf(1)},
		"cycle":      {loop},
		"nested_nan": {[]any{[]any{math.NaN()}}},
	}
	for name, parts := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Canonical(parts); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}

	_, err := Canonical([]any{loop})
	if !errors.Is(err, ErrTooDeep) {
		t.Fatalf("cyclic value: expected ErrTooDeep, got %v", err)
	}

	var ue *UnsupportedError
	_, err = Canonical([]any{"carat", uintptr(7)})
	if !errors.As(err, &ue) || ue.Kind != reflect.Uintptr || ue.Path != "[1]" {
		t.Fatalf("uintptr: expected UnsupportedError at [1], got %v", err)
	}

	many := make([]any, MaxParts+1)
	if _, err := Canonical(many); !errors.Is(err, ErrTooManyParts) {
		t.Fatalf("expected ErrTooManyParts, got %v", err)
	}
}

func TestCanonicalAcceptsCommonShapes(t *testing.T) {
	type sel struct {
		Brush []float64
		Label string
		skip  func()
	}
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)
	mustCanonical(t, nil, true, "s", []byte{1, 2}, []int{1, 2}, ts, sel{Brush: []float64{1, 2}}, &sel{})
}

func TestPrefixes(t *testing.T) {
	parts := []any{"carat", "price"}
	p, err := Prefixes(parts)
	if err != nil {
		t.Fatal(err)
	}
	if len(p) != 3 {
		t.Fatalf("expected 3 prefixes, got %d", len(p))
	}
	if p[2] != Hash(mustCanonical(t, parts...)) {
		t.Fatalf("last prefix must be the fingerprint hash")
	}
	if p[0] != Hash(mustCanonical(t)) {
		t.Fatalf("first prefix must be the empty tuple")
	}
	q, _ := Prefixes([]any{"carat", "depth"})
	if p[1] != q[1] || p[2] == q[2] {
		t.Fatalf("shared prefix must hash equally, full fingerprints must differ")
	}
	if len(p[0]) != 2*hashLen {
		t.Fatalf("unexpected hash length %d", len(p[0]))
	}
}
