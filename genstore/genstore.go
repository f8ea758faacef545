// Package genstore keeps the generation counters behind cache invalidation.
//
// The cache owns one counter per fingerprint prefix. Every stored entry
// records the counters it was written under; bumping any of them makes the
// entry stale, and it is dropped the next time it is read.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
// Use LocalGenStore for in-process caches, ProviderGenStore to persist
// generations inside an external artifact store, and RedisGenStore or
// DynamoGenStore when several processes invalidate the same store concurrently.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, key string) (uint64, error)
	// SnapshotMany returns gens for many keys; missing => 0.
	SnapshotMany(ctx context.Context, keys []string) (map[string]uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, key string) (uint64, error)
	// Cleanup prunes old metadata if applicable (no-op for remote stores).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
