package rendercache

import (
	"context"
	"time"

	"github.com/unkn0wn-root/rendercache/codec"
	gen "github.com/unkn0wn-root/rendercache/genstore"
	pr "github.com/unkn0wn-root/rendercache/provider"
)

// SetCostFunc computes the provider cost of a stored entry. Default: len(raw).
type SetCostFunc func(storageKey string, raw []byte) int64

// Cache is a render cache for artifacts of type A.
type Cache[A any] interface {
	Scope() Scope
	Enabled() bool
	Close(context.Context) error

	// KeyFor returns the key GetOrRender would use, without touching the store.
	KeyFor(fp Fingerprint, width, height float64) (Key, error)

	// GetOrRender returns the cached artifact for (fp, bucket(width, height)) or
	// renders, stores and returns it. Concurrent misses for one key share a
	// single render; []byte artifacts are copied for every caller but the one
	// that rendered. Other artifact types are shared between coalesced callers.
	// Renderer failures are returned as *RenderError and never cached.
	GetOrRender(ctx context.Context, fp Fingerprint, width, height float64, r Renderer[A]) (Entry[A], error)

	// Peek is GetOrRender without the render.
	Peek(ctx context.Context, fp Fingerprint, width, height float64) (Entry[A], bool, error)

	// Invalidate drops every entry whose fingerprint starts with prefix.
	Invalidate(ctx context.Context, prefix Fingerprint) error
	// InvalidateAll drops every entry of this namespace. Entries of other
	// namespaces sharing the provider are untouched.
	InvalidateAll(ctx context.Context) error

	Stats() Stats
}

// Entry is a cached or freshly rendered artifact.
type Entry[A any] struct {
	Value A
	Key   Key
	// Width and Height are the bucket size the artifact was rendered at.
	Width, Height int
	CreatedAt     time.Time
	// Cached reports whether Value came from the store.
	Cached bool
}

// Options tune the behavior of a render cache.
// Only Namespace is required; others have sensible defaults.
type Options[A any] struct {
	Namespace string // logical namespace to avoid collisions. e.g. "plots", "thumbs"
	Scope     Scope  // default ScopeShared

	Provider pr.Provider    // nil => bounded LRU; required for ScopeExternal
	Codec    codec.Codec[A] // nil => codec.Bytes when A is []byte
	Sizing   SizingPolicy   // nil => DefaultSizing
	GenStore gen.GenStore   // nil => ProviderGenStore for ScopeExternal, LocalGenStore otherwise

	TTL            time.Duration // 0 => no expiry
	Logger         Logger        // if nil, NopLogger is used
	Hooks          Hooks         // if nil, NopHooks is used
	Disabled       bool          // default false (enabled); disabled caches always render
	ComputeSetCost SetCostFunc   // default len(raw)

	// StrictStore returns *CacheUnavailableError on store failures instead of
	// rendering uncached.
	StrictStore bool
	// DisableCoalescing lets concurrent misses for one key render independently.
	DisableCoalescing bool
	// MaxConcurrentRenders bounds renders in flight across all keys; 0 => unbounded.
	MaxConcurrentRenders int64
}

func New[A any](opts Options[A]) (Cache[A], error) {
	return newCache[A](opts)
}

// coalesce returns def when v is the zero value of T.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
