package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flashdeal/dealhub/internal/repository"
)

type item struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func newTestClient(t *testing.T) (*Client, repository.StateStore) {
	t.Helper()
	store := repository.NewMemoryStateStore()
	c := NewClient(store, zap.NewNop(), time.Minute, 2, 16)
	t.Cleanup(c.Close)
	return c, store
}

func countingLoader(result *item, calls *atomic.Int64) func(context.Context, int64) (*item, error) {
	return func(_ context.Context, _ int64) (*item, error) {
		calls.Add(1)
		return result, nil
	}
}

func TestPassThroughCachesValue(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	var calls atomic.Int64
	loader := countingLoader(&item{ID: 1, Name: "cafe"}, &calls)

	got, err := QueryWithPassThrough(ctx, c, "cache:item:", int64(1), loader, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "cafe", got.Name)

	got, err = QueryWithPassThrough(ctx, c, "cache:item:", int64(1), loader, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), calls.Load(), "second read must come from cache")
}

func TestPassThroughCachesAbsence(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	var calls atomic.Int64
	loader := countingLoader(nil, &calls)

	got, err := QueryWithPassThrough(ctx, c, "cache:item:", int64(404), loader, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Absence is cached: the loader must not run again inside the null TTL.
	got, err = QueryWithPassThrough(ctx, c, "cache:item:", int64(404), loader, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, int64(1), calls.Load())
}

func TestPassThroughMalformedPayload(t *testing.T) {
	ctx := context.Background()
	c, store := newTestClient(t)

	require.NoError(t, store.Set(ctx, "cache:item:7", []byte("{not json"), time.Minute))

	var calls atomic.Int64
	_, err := QueryWithPassThrough(ctx, c, "cache:item:", int64(7), countingLoader(&item{}, &calls), time.Minute)
	require.Error(t, err, "a corrupt cached payload is a hard failure, not a silent miss")
	assert.Zero(t, calls.Load())
}

func TestMutexSingleRebuilder(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	var calls atomic.Int64
	loader := func(_ context.Context, id int64) (*item, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond) // widen the race window
		return &item{ID: id, Name: "hot"}, nil
	}

	const readers = 50
	var wg sync.WaitGroup
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			got, err := QueryWithMutex(ctx, c, "cache:item:", int64(9), loader, time.Minute)
			assert.NoError(t, err)
			assert.NotNil(t, got)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load(), "only the lock winner may hit the source")
}

func TestLogicalExpireMissIsNotRebuilt(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	var calls atomic.Int64
	got, err := QueryWithLogicalExpire(ctx, c, "cache:item:", int64(2), countingLoader(&item{}, &calls), time.Minute)
	require.NoError(t, err)
	assert.Nil(t, got, "unwarmed keys read as absent")
	assert.Zero(t, calls.Load())
}

func TestLogicalExpireFreshEntry(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	require.NoError(t, c.SetWithLogicalExpire(ctx, "cache:item:3", &item{ID: 3, Name: "fresh"}, time.Minute))

	var calls atomic.Int64
	got, err := QueryWithLogicalExpire(ctx, c, "cache:item:", int64(3), countingLoader(nil, &calls), time.Minute)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "fresh", got.Name)
	assert.Zero(t, calls.Load(), "a fresh entry never touches the source")
}

func TestLogicalExpireStaleServesOldAndRebuildsOnce(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	// Warm an already-stale entry.
	require.NoError(t, c.SetWithLogicalExpire(ctx, "cache:item:5", &item{ID: 5, Name: "stale"}, -time.Second))

	var calls atomic.Int64
	loader := func(_ context.Context, id int64) (*item, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return &item{ID: id, Name: "rebuilt"}, nil
	}

	const readers = 50
	var wg sync.WaitGroup
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			got, err := QueryWithLogicalExpire(ctx, c, "cache:item:", int64(5), loader, time.Minute)
			assert.NoError(t, err)
			// Readers get the stale payload (or the rebuilt one if the
			// background refresh already landed); nobody blocks on the source.
			if assert.NotNil(t, got) {
				assert.Contains(t, []string{"stale", "rebuilt"}, got.Name)
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		got, err := QueryWithLogicalExpire(ctx, c, "cache:item:", int64(5), loader, time.Minute)
		return err == nil && got != nil && got.Name == "rebuilt"
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, int64(1), calls.Load(), "a stale storm triggers exactly one rebuild")
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	var calls atomic.Int64
	loader := countingLoader(&item{ID: 8, Name: "v1"}, &calls)

	_, err := QueryWithPassThrough(ctx, c, "cache:item:", int64(8), loader, time.Minute)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, Key("cache:item:", int64(8))))

	_, err = QueryWithPassThrough(ctx, c, "cache:item:", int64(8), loader, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load(), "invalidation must force a reload")
}
