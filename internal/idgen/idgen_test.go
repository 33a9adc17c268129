package idgen

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(t *testing.T) (*Generator, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewGenerator(client), mr
}

func TestNextIDStrictlyIncreasing(t *testing.T) {
	ctx := context.Background()
	gen, _ := newTestGenerator(t)

	const n = 1000
	seen := make(map[int64]struct{}, n)
	var prev int64
	for i := 0; i < n; i++ {
		id, err := gen.NextID(ctx, "order")
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		_, dup := seen[id]
		assert.False(t, dup, "id %d minted twice", id)
		seen[id] = struct{}{}
		prev = id
	}
}

func TestNextIDTimestampHalf(t *testing.T) {
	ctx := context.Background()
	gen, _ := newTestGenerator(t)

	before := time.Now().UTC().Unix() - epoch
	id, err := gen.NextID(ctx, "order")
	require.NoError(t, err)
	after := time.Now().UTC().Unix() - epoch

	ts := id >> countBits
	assert.GreaterOrEqual(t, ts, before)
	assert.LessOrEqual(t, ts, after)
	assert.Equal(t, int64(1), id&(1<<countBits-1), "first id of the day carries counter 1")
}

func TestNextIDNamespacesAreIndependent(t *testing.T) {
	ctx := context.Background()
	gen, mr := newTestGenerator(t)

	_, err := gen.NextID(ctx, "order")
	require.NoError(t, err)
	_, err = gen.NextID(ctx, "order")
	require.NoError(t, err)
	id, err := gen.NextID(ctx, "shop")
	require.NoError(t, err)

	assert.Equal(t, int64(1), id&(1<<countBits-1), "a new namespace starts its own counter")

	day := time.Now().UTC().Format("2006:01:02")
	mr.CheckGet(t, fmt.Sprintf("icr:order:%s", day), "2")
}
