// Package provider defines the byte store behind a render cache scope.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key (no prepended/appended
// metadata, no re-encoding). Stores that compress internally must fully reverse it.
//
// The keyspace "render:<ns>:" is owned by rendercache. Foreign writes under it
// fail wire validation and are deleted on read.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. ttl <= 0 means no expiry. Stores that bound memory use
	// cost (bytes by default). Returns ok=false when the write was rejected
	// under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort, missing keys are not an error).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Clearer is implemented by providers that can drop every entry they own.
// Used on session teardown, where the scope owns the whole provider.
type Clearer interface {
	Clear(ctx context.Context) error
}

// PrefixClearer is implemented by providers that can drop every key starting
// with a prefix. InvalidateAll uses it with "render:<ns>:" so that other
// namespaces sharing the provider keep their entries.
type PrefixClearer interface {
	ClearPrefix(ctx context.Context, prefix string) error
}

// Lener is implemented by providers that can report their entry count.
type Lener interface {
	Len() int
}
