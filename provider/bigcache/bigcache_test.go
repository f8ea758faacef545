package bigcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripAndClear(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{LifeWindow: time.Minute, Shards: 16, MaxEntriesInWindow: 100, MaxEntrySize: 64})
	require.NoError(t, err)
	defer p.Close(ctx)

	_, ok, err := p.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, k := range []string{"a", "b"} {
		ok, err := p.Set(ctx, k, []byte("v-"+k), 0, 0)
		require.NoError(t, err)
		require.True(t, ok)
	}
	v, ok, err := p.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v-a"), v)
	assert.Equal(t, 2, p.Len())

	require.NoError(t, p.Del(ctx, "a"))
	require.NoError(t, p.Del(ctx, "a"), "deleting a missing key is not an error")

	require.NoError(t, p.Clear(ctx))
	assert.Equal(t, 0, p.Len())
}
