package rendercache

import (
	"context"
	"errors"
)

// RenderContext is what a Renderer receives on a miss.
type RenderContext struct {
	Key Key
	// Width and Height are the bucket size to render at.
	Width, Height int
	// RequestedWidth and RequestedHeight are the caller's original size.
	RequestedWidth, RequestedHeight float64
}

// Renderer produces an artifact. It is only called on a miss.
type Renderer[A any] interface {
	Render(ctx context.Context, rc RenderContext) (A, error)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc[A any] func(ctx context.Context, rc RenderContext) (A, error)

func (f RenderFunc[A]) Render(ctx context.Context, rc RenderContext) (A, error) { return f(ctx, rc) }

// SizeProvider reports the size an output is currently displayed at. It is
// asked on every Render and may change between calls.
type SizeProvider interface {
	Size(ctx context.Context) (width, height float64, err error)
}

// SizeFunc adapts a function to SizeProvider.
type SizeFunc func(ctx context.Context) (float64, float64, error)

func (f SizeFunc) Size(ctx context.Context) (float64, float64, error) { return f(ctx) }

type fixedSize struct{ w, h float64 }

func (f fixedSize) Size(context.Context) (float64, float64, error) { return f.w, f.h, nil }

// FixedSize always reports w x h.
func FixedSize(w, h float64) SizeProvider { return fixedSize{w, h} }

// KeyFunc computes the fingerprint at request time.
type KeyFunc func(ctx context.Context) (Fingerprint, error)

// Static returns a KeyFunc for a constant fingerprint.
func Static(parts ...any) KeyFunc {
	fp := Of(parts...)
	return func(context.Context) (Fingerprint, error) { return fp, nil }
}

// Output binds a cache to a fingerprint thunk, a size source and a renderer,
// so a caller can ask for "the current artifact" with no arguments.
type Output[A any] struct {
	Cache    Cache[A]
	Key      KeyFunc
	Size     SizeProvider
	Renderer Renderer[A]
}

// Render evaluates Key and Size now and returns the matching artifact.
func (o *Output[A]) Render(ctx context.Context) (Entry[A], error) {
	var zero Entry[A]
	if o.Cache == nil || o.Key == nil || o.Size == nil {
		return zero, errors.New("rendercache: output needs Cache, Key and Size")
	}
	fp, err := o.Key(ctx)
	if err != nil {
		return zero, &InvalidKeyError{Err: err}
	}
	w, h, err := o.Size.Size(ctx)
	if err != nil {
		return zero, err
	}
	return o.Cache.GetOrRender(ctx, fp, w, h, o.Renderer)
}
