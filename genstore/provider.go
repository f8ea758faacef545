package genstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	pr "github.com/unkn0wn-root/rendercache/provider"
)

// ProviderGenStore keeps generations as entries of the artifact provider
// itself, under "gen:<key>". With a persistent provider (disk, Redis, S3,
// MinIO) invalidations then outlive the process without a separate
// coordination store.
//
// Bump is a read-modify-write guarded by an in-process lock only. Two
// processes bumping the same key at once may both write n+1; entries written
// under n are still stale, so the invalidation itself is not lost. Use
// RedisGenStore or DynamoGenStore when many writers invalidate concurrently.
//
// The provider must not evict gen entries; bounded in-process providers
// (lru, ristretto, bigcache) are not suitable.
type ProviderGenStore struct {
	p  pr.Provider
	mu sync.Mutex
}

var _ GenStore = (*ProviderGenStore)(nil)

func NewProviderGenStore(p pr.Provider) *ProviderGenStore {
	return &ProviderGenStore{p: p}
}

func (s *ProviderGenStore) key(k string) string { return "gen:" + k }

func (s *ProviderGenStore) Snapshot(ctx context.Context, key string) (uint64, error) {
	b, ok, err := s.p.Get(ctx, s.key(key))
	if err != nil || !ok {
		return 0, err
	}
	if len(b) != 8 {
		return 0, fmt.Errorf("provider genstore: corrupt generation for %q (%d bytes)", key, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

func (s *ProviderGenStore) SnapshotMany(ctx context.Context, keys []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(keys))
	for _, k := range keys {
		g, err := s.Snapshot(ctx, k)
		if err != nil {
			return nil, err
		}
		out[k] = g
	}
	return out, nil
}

func (s *ProviderGenStore) Bump(ctx context.Context, key string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.Snapshot(ctx, key)
	if err != nil {
		return 0, err
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], cur+1)
	ok, err := s.p.Set(ctx, s.key(key), b[:], 8, 0)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("provider genstore: provider rejected generation for %q", key)
	}
	return cur + 1, nil
}

func (s *ProviderGenStore) Cleanup(time.Duration) {}

// Close is a no-op; the provider belongs to the cache.
func (s *ProviderGenStore) Close(context.Context) error { return nil }
