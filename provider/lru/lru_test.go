package lru

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvictsLeastRecentlyUsedByCount(t *testing.T) {
	ctx := context.Background()
	var evicted []string
	p := New(Config{MaxEntries: 2, MaxBytes: -1, OnEvict: func(k string, _ int64) { evicted = append(evicted, k) }})

	for _, k := range []string{"a", "b"} {
		ok, err := p.Set(ctx, k, []byte(k), 0, 0)
		require.NoError(t, err)
		require.True(t, ok)
	}
	// touch a so b becomes the eviction candidate
	_, ok, _ := p.Get(ctx, "a")
	require.True(t, ok)

	_, err := p.Set(ctx, "c", []byte("c"), 0, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, 2, p.Len())
	_, ok, _ = p.Get(ctx, "b")
	assert.False(t, ok)
}

func TestEvictsByBytes(t *testing.T) {
	ctx := context.Background()
	p := New(Config{MaxEntries: -1, MaxBytes: 10})

	_, _ = p.Set(ctx, "a", make([]byte, 4), 0, 0)
	_, _ = p.Set(ctx, "b", make([]byte, 4), 0, 0)
	_, _ = p.Set(ctx, "c", make([]byte, 4), 0, 0) // 12 > 10 -> a goes

	_, ok, _ := p.Get(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, int64(8), p.Size())

	ok, err := p.Set(ctx, "huge", make([]byte, 11), 0, 0)
	require.NoError(t, err)
	assert.False(t, ok, "entries larger than the byte bound are rejected")
	assert.Equal(t, 2, p.Len())
}

func TestOverwriteAdjustsSize(t *testing.T) {
	ctx := context.Background()
	p := New(Config{})
	_, _ = p.Set(ctx, "k", make([]byte, 10), 0, 0)
	_, _ = p.Set(ctx, "k", make([]byte, 3), 0, 0)
	assert.Equal(t, int64(3), p.Size())
	assert.Equal(t, 1, p.Len())
}

func TestTTLExpiry(t *testing.T) {
	ctx := context.Background()
	p := New(Config{})
	now := time.Unix(1000, 0)
	p.now = func() time.Time { return now }

	_, _ = p.Set(ctx, "k", []byte("v"), 0, time.Minute)
	_, ok, _ := p.Get(ctx, "k")
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = p.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, p.Len())
}

func TestClearAndDel(t *testing.T) {
	ctx := context.Background()
	p := New(Config{})
	_, _ = p.Set(ctx, "a", []byte("1"), 0, 0)
	_, _ = p.Set(ctx, "b", []byte("2"), 0, 0)

	require.NoError(t, p.Del(ctx, "a"))
	require.NoError(t, p.Del(ctx, "missing"))
	assert.Equal(t, 1, p.Len())

	require.NoError(t, p.Clear(ctx))
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, int64(0), p.Size())
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	p := New(Config{MaxEntries: 64})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := fmt.Sprintf("k%d", (g*200+i)%100)
				_, _ = p.Set(ctx, k, []byte(k), 0, 0)
				_, _, _ = p.Get(ctx, k)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, p.Len(), 64)
	hits, misses, evictions := p.Stats()
	assert.Equal(t, int64(1600), hits+misses)
	assert.Positive(t, evictions)
}

func TestClearPrefix(t *testing.T) {
	ctx := context.Background()
	p := New(Config{})
	for _, k := range []string{"render:a:x", "render:a:y", "render:ab:x"} {
		_, _ = p.Set(ctx, k, []byte("vv"), 0, 0)
	}
	require.NoError(t, p.ClearPrefix(ctx, "render:a:"))
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, int64(2), p.Size())
	_, ok, _ := p.Get(ctx, "render:ab:x")
	assert.True(t, ok)
}
