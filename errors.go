package rendercache

import (
	"errors"
	"fmt"
)

var (
	ErrNoNamespace = errors.New("rendercache: namespace is required")
	ErrNoCodec     = errors.New("rendercache: codec is required")
	ErrNoProvider  = errors.New("rendercache: provider is required for external scope")
	ErrNoRenderer  = errors.New("rendercache: renderer is required")
	ErrClosed      = errors.New("rendercache: cache closed")
)

// InvalidKeyError reports a fingerprint without a stable canonical encoding.
type InvalidKeyError struct {
	Err error
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("rendercache: invalid fingerprint: %v", e.Err)
}

func (e *InvalidKeyError) Unwrap() error { return e.Err }

// InvalidSizeError reports a requested size that cannot be quantized.
type InvalidSizeError struct {
	Width, Height float64
	Reason        string
}

func (e *InvalidSizeError) Error() string {
	return fmt.Sprintf("rendercache: invalid size %gx%g: %s", e.Width, e.Height, e.Reason)
}

// CacheUnavailableError reports a provider or generation store failure.
// Op is one of "get", "set", "snapshot", "bump", "clear".
type CacheUnavailableError struct {
	Op  string
	Err error
}

func (e *CacheUnavailableError) Error() string {
	return fmt.Sprintf("rendercache: store unavailable (%s): %v", e.Op, e.Err)
}

func (e *CacheUnavailableError) Unwrap() error { return e.Err }

// RenderError wraps a renderer failure. Nothing is cached for Key.
type RenderError struct {
	Key Key
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendercache: render %s: %v", e.Key, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

type InvalidateError struct {
	Prefix   Fingerprint
	BumpErr  error
	ClearErr error
}

func (e *InvalidateError) Error() string {
	switch {
	case e.BumpErr != nil && e.ClearErr != nil:
		return fmt.Sprintf("invalidate %v failed: gen bump and clear failed: bump=%v; clear=%v",
			e.Prefix, e.BumpErr, e.ClearErr)
	case e.BumpErr != nil:
		return fmt.Sprintf("invalidate %v: gen bump failed: %v", e.Prefix, e.BumpErr)
	case e.ClearErr != nil:
		return fmt.Sprintf("invalidate %v: clear failed: %v", e.Prefix, e.ClearErr)
	default:
		return fmt.Sprintf("invalidate %v: unknown error", e.Prefix)
	}
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.BumpErr != nil {
		errs = append(errs, e.BumpErr)
	}
	if e.ClearErr != nil {
		errs = append(errs, e.ClearErr)
	}
	return errs
}
