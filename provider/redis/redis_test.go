package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedis connects to RENDERCACHE_REDIS_ADDR and skips without it.
func newTestRedis(t *testing.T, prefix string) *Redis {
	t.Helper()
	addr := os.Getenv("RENDERCACHE_REDIS_ADDR")
	if addr == "" {
		t.Skip("RENDERCACHE_REDIS_ADDR not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	p, err := New(Config{Client: rdb, Prefix: prefix, CloseClient: true, ScanCount: 10})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = p.Clear(context.Background())
		_ = p.Close(context.Background())
	})
	return p
}

func TestNewRejectsNilClient(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestRedisRoundTripTTLAndClear(t *testing.T) {
	ctx := context.Background()
	p := newTestRedis(t, "rctest:"+t.Name()+":")

	_, ok, err := p.Get(ctx, "render:plots:a:480x480")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.Set(ctx, "render:plots:a:480x480", []byte("png"), 0, 0)
	require.NoError(t, err)
	_, err = p.Set(ctx, "render:plots:b:480x480", []byte("png"), 0, 50*time.Millisecond)
	require.NoError(t, err)

	v, ok, err := p.Get(ctx, "render:plots:a:480x480")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("png"), v)

	time.Sleep(120 * time.Millisecond)
	_, ok, _ = p.Get(ctx, "render:plots:b:480x480")
	assert.False(t, ok, "ttl should expire the entry")

	require.NoError(t, p.Clear(ctx))
	_, ok, _ = p.Get(ctx, "render:plots:a:480x480")
	assert.False(t, ok)
}

func TestGlobEscape(t *testing.T) {
	assert.Equal(t, `render:a\*b\?\[x\]\\:`, globEscape(`render:a*b?[x]\:`))
	assert.Equal(t, "render:plots:", globEscape("render:plots:"))
}

func TestRedisClearPrefixKeepsOtherNamespaces(t *testing.T) {
	ctx := context.Background()
	p := newTestRedis(t, "rctest:"+t.Name()+":")

	_, err := p.Set(ctx, "render:a:x:480x480", []byte("a"), 0, 0)
	require.NoError(t, err)
	_, err = p.Set(ctx, "render:ab:x:480x480", []byte("ab"), 0, 0)
	require.NoError(t, err)

	require.NoError(t, p.ClearPrefix(ctx, "render:a:"))
	_, ok, _ := p.Get(ctx, "render:a:x:480x480")
	assert.False(t, ok)
	_, ok, _ = p.Get(ctx, "render:ab:x:480x480")
	assert.True(t, ok)
}
