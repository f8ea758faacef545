package genstore

import (
	"context"
	"os"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisGenStoreRejectsNilClient(t *testing.T) {
	_, err := NewRedisGenStore(RedisConfig{})
	assert.Error(t, err)
}

func TestRedisGenStoreBumpAndSnapshot(t *testing.T) {
	addr := os.Getenv("RENDERCACHE_REDIS_ADDR")
	if addr == "" {
		t.Skip("RENDERCACHE_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	ns := "rctest-" + t.Name()
	s, err := NewRedisGenStore(RedisConfig{Client: rdb, Namespace: ns, CloseClient: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = rdb.Del(context.Background(), "gen:"+ns+":plots:a", "gen:"+ns+":plots:b").Err()
		_ = s.Close(context.Background())
	})

	g, err := s.Snapshot(ctx, "plots:a")
	require.NoError(t, err)
	assert.Zero(t, g)

	g, err = s.Bump(ctx, "plots:a")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), g)

	m, err := s.SnapshotMany(ctx, []string{"plots:a", "plots:b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{"plots:a": 1, "plots:b": 0}, m)
}
