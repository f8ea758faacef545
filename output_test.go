package rendercache

import (
	"context"
	"errors"
	"testing"
)

func TestOutputReevaluatesKeyAndSize(t *testing.T) {
	cc := newTestCache(t, newMemProvider(), nil)
	r := &counter{}

	x, y := "carat", "price"
	w := 400.0
	out := &Output[[]byte]{
		Cache: cc,
		Key: func(context.Context) (Fingerprint, error) {
			return Of(x, y), nil
		},
		Size: SizeFunc(func(context.Context) (float64, float64, error) {
			return w, 400, nil
		}),
		Renderer: r,
	}
	ctx := context.Background()

	steps := []struct {
		y     string
		w     float64
		calls int64
	}{
		{"price", 400, 1},
		{"price", 401, 1},
		{"price", 800, 2},
		{"depth", 800, 3},
		{"price", 800, 3},
	}
	for i, s := range steps {
		y, w = s.y, s.w
		if _, err := out.Render(ctx); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if r.calls() != s.calls {
			t.Fatalf("step %d: calls=%d want %d", i, r.calls(), s.calls)
		}
	}
}

func TestOutputErrors(t *testing.T) {
	cc := newTestCache(t, newMemProvider(), nil)
	ctx := context.Background()

	if _, err := (&Output[[]byte]{Cache: cc}).Render(ctx); err == nil {
		t.Fatalf("incomplete output accepted")
	}

	keyErr := errors.New("state not ready")
	o := &Output[[]byte]{
		Cache:    cc,
		Key:      func(context.Context) (Fingerprint, error) { return nil, keyErr },
		Size:     FixedSize(400, 400),
		Renderer: &counter{},
	}
	var ke *InvalidKeyError
	if _, err := o.Render(ctx); !errors.As(err, &ke) || !errors.Is(err, keyErr) {
		t.Fatalf("want *InvalidKeyError wrapping keyErr, got %v", err)
	}

	sizeErr := errors.New("not laid out")
	o.Key = Static("a")
	o.Size = SizeFunc(func(context.Context) (float64, float64, error) { return 0, 0, sizeErr })
	if _, err := o.Render(ctx); !errors.Is(err, sizeErr) {
		t.Fatalf("want sizeErr, got %v", err)
	}

	o.Size = FixedSize(0, 400)
	var se *InvalidSizeError
	if _, err := o.Render(ctx); !errors.As(err, &se) {
		t.Fatalf("want *InvalidSizeError, got %v", err)
	}
}
