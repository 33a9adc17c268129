// Package cache wraps a "load from durable store" callback with read
// strategies that defeat cache penetration (null caching) and cache breakdown
// (mutex-guarded and logical-expiry rebuilds). Payloads are opaque JSON; the
// layer never assumes a schema.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"flashdeal/dealhub/internal/lock"
	"flashdeal/dealhub/internal/repository"
)

// ErrCacheBusy is returned by the mutex strategy when the per-key rebuild lock
// stayed contended through every retry.
var ErrCacheBusy = errors.New("cache: rebuild lock contended, retries exhausted")

const (
	rebuildLockTTL  = 10 * time.Second
	mutexRetryDelay = 50 * time.Millisecond
	mutexRetryLimit = 50
	rebuildTimeout  = 10 * time.Second
)

// nullMarker is the cached representation of "confirmed absent". It is
// distinguishable from a miss: a miss reads back as nil, the marker as a
// present zero-length value.
var nullMarker = []byte{}

type Client struct {
	store    repository.StateStore
	logger   *zap.Logger
	sf       singleflight.Group
	nullTTL  time.Duration
	rebuilds *rebuildPool
}

func NewClient(store repository.StateStore, logger *zap.Logger, nullTTL time.Duration, rebuildWorkers, rebuildQueue int) *Client {
	return &Client{
		store:    store,
		logger:   logger,
		nullTTL:  nullTTL,
		rebuilds: newRebuildPool(rebuildWorkers, rebuildQueue),
	}
}

// Close stops the background rebuild workers after draining queued tasks.
func (c *Client) Close() {
	c.rebuilds.Close()
}

// Key joins a prefix and an id into a cache key.
func Key(prefix string, id any) string {
	return fmt.Sprintf("%s%v", prefix, id)
}

// Set serializes the value and stores it under the store's own TTL.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.store.Set(ctx, key, data, ttl)
}

// logicalEntry wraps a payload with an application-level staleness timestamp.
type logicalEntry struct {
	Data       json.RawMessage `json:"data"`
	ExpireTime time.Time       `json:"expire_time"`
}

// SetWithLogicalExpire stores the value without a store-level TTL; staleness
// is carried inside the entry and judged at read time.
func (c *Client) SetWithLogicalExpire(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	entry, err := json.Marshal(logicalEntry{
		Data:       data,
		ExpireTime: time.Now().Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("encode entry %s: %w", key, err)
	}
	return c.store.Set(ctx, key, entry, 0)
}

// Invalidate removes a cache key. Used by write paths after the durable update.
func (c *Client) Invalidate(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// QueryWithPassThrough reads through the cache, caching absence as an empty
// marker with a short TTL so repeated lookups of nonexistent ids cannot hammer
// the durable store. Concurrent in-process misses for one key collapse into a
// single loader call.
func QueryWithPassThrough[R any, ID any](
	ctx context.Context, c *Client, keyPrefix string, id ID,
	fallback func(context.Context, ID) (*R, error), ttl time.Duration,
) (*R, error) {
	key := Key(keyPrefix, id)

	hit, absent, val, err := lookup[R](ctx, c, key)
	if err != nil {
		return nil, err
	}
	if absent {
		return nil, nil
	}
	if hit {
		return val, nil
	}

	res, err, _ := c.sf.Do(key, func() (any, error) {
		r, err := fallback(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := writeBack(ctx, c, key, r, ttl); err != nil {
			return nil, err
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*R), nil
}

// QueryWithMutex guarantees at most one concurrent rebuilder per key: a miss
// must win the per-key lock before touching the durable store, everyone else
// sleeps briefly and retries the whole read. Retries are bounded; exhaustion
// surfaces as ErrCacheBusy.
func QueryWithMutex[R any, ID any](
	ctx context.Context, c *Client, keyPrefix string, id ID,
	fallback func(context.Context, ID) (*R, error), ttl time.Duration,
) (*R, error) {
	key := Key(keyPrefix, id)

	for attempt := 0; attempt < mutexRetryLimit; attempt++ {
		hit, absent, val, err := lookup[R](ctx, c, key)
		if err != nil {
			return nil, err
		}
		if absent {
			return nil, nil
		}
		if hit {
			return val, nil
		}

		mtx := lock.NewMutex(c.store, key)
		acquired, err := mtx.TryLock(ctx, rebuildLockTTL)
		if err != nil {
			return nil, err
		}
		if !acquired {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(mutexRetryDelay):
			}
			continue
		}

		return rebuildUnderLock(ctx, c, mtx, key, id, fallback, ttl)
	}
	return nil, ErrCacheBusy
}

func rebuildUnderLock[R any, ID any](
	ctx context.Context, c *Client, mtx *lock.Mutex, key string, id ID,
	fallback func(context.Context, ID) (*R, error), ttl time.Duration,
) (*R, error) {
	defer func() {
		if err := mtx.Unlock(context.WithoutCancel(ctx)); err != nil {
			c.logger.Warn("release rebuild lock", zap.String("key", key), zap.Error(err))
		}
	}()

	// Another holder may have rebuilt the entry while we waited for the lock.
	hit, absent, val, err := lookup[R](ctx, c, key)
	if err != nil {
		return nil, err
	}
	if absent {
		return nil, nil
	}
	if hit {
		return val, nil
	}

	r, err := fallback(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := writeBack(ctx, c, key, r, ttl); err != nil {
		return nil, err
	}
	return r, nil
}

// QueryWithLogicalExpire serves hot, pre-warmed keys without ever blocking the
// read path on the loader. A stale entry is returned as-is while at most one
// caller (the lock winner) schedules an asynchronous rebuild; a true miss is
// not rebuilt.
func QueryWithLogicalExpire[R any, ID any](
	ctx context.Context, c *Client, keyPrefix string, id ID,
	fallback func(context.Context, ID) (*R, error), ttl time.Duration,
) (*R, error) {
	key := Key(keyPrefix, id)

	raw, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read cache %s: %w", key, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	entry, val, err := decodeLogical[R](key, raw)
	if err != nil {
		return nil, err
	}
	if entry.ExpireTime.After(time.Now()) {
		return val, nil
	}

	mtx := lock.NewMutex(c.store, key)
	acquired, err := mtx.TryLock(ctx, rebuildLockTTL)
	if err != nil {
		return nil, err
	}
	if acquired {
		scheduleRebuild(c, mtx, key, id, fallback, ttl)
	}

	// Return whatever is present now: still the stale payload, unless a
	// rebuild already landed.
	raw, err = c.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read cache %s: %w", key, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	_, val, err = decodeLogical[R](key, raw)
	if err != nil {
		return nil, err
	}
	return val, nil
}

// scheduleRebuild hands the reload to the background pool so the caller keeps
// its O(1) read path. A saturated pool degrades to a synchronous rebuild in
// the calling goroutine instead of queuing without bound. The rebuild lock is
// released on every path.
func scheduleRebuild[R any, ID any](
	c *Client, mtx *lock.Mutex, key string, id ID,
	fallback func(context.Context, ID) (*R, error), ttl time.Duration,
) {
	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), rebuildTimeout)
		defer cancel()
		defer func() {
			if err := mtx.Unlock(ctx); err != nil {
				c.logger.Warn("release rebuild lock", zap.String("key", key), zap.Error(err))
			}
		}()

		// A caller that judged the entry stale before a refresh landed can
		// still win the lock right after release; re-check under the lock.
		if raw, err := c.store.Get(ctx, key); err == nil && len(raw) > 0 {
			if entry, _, derr := decodeLogical[R](key, raw); derr == nil && entry.ExpireTime.After(time.Now()) {
				return
			}
		}

		r, err := fallback(ctx, id)
		if err != nil {
			c.logger.Error("cache rebuild failed", zap.String("key", key), zap.Error(err))
			return
		}
		if r == nil {
			// The durable row vanished; drop the hot entry rather than
			// serving it forever.
			if err := c.store.Delete(ctx, key); err != nil {
				c.logger.Error("drop stale entry", zap.String("key", key), zap.Error(err))
			}
			return
		}
		if err := c.SetWithLogicalExpire(ctx, key, r, ttl); err != nil {
			c.logger.Error("cache rebuild write failed", zap.String("key", key), zap.Error(err))
		}
	}

	if !c.rebuilds.TrySubmit(task) {
		task()
	}
}

func decodeLogical[R any](key string, raw []byte) (logicalEntry, *R, error) {
	var entry logicalEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return entry, nil, fmt.Errorf("decode cached entry %s: %w", key, err)
	}
	var r R
	if err := json.Unmarshal(entry.Data, &r); err != nil {
		return entry, nil, fmt.Errorf("decode cached payload %s: %w", key, err)
	}
	return entry, &r, nil
}

// lookup reads the cache once. hit means a payload was decoded; absent means
// the empty marker was found.
func lookup[R any](ctx context.Context, c *Client, key string) (hit, absent bool, val *R, err error) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		return false, false, nil, fmt.Errorf("read cache %s: %w", key, err)
	}
	if raw == nil {
		return false, false, nil, nil
	}
	if len(raw) == 0 {
		return false, true, nil, nil
	}
	var r R
	if err := json.Unmarshal(raw, &r); err != nil {
		return false, false, nil, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, false, &r, nil
}

func writeBack[R any](ctx context.Context, c *Client, key string, r *R, ttl time.Duration) error {
	if r == nil {
		if err := c.store.Set(ctx, key, nullMarker, c.nullTTL); err != nil {
			return fmt.Errorf("cache absence %s: %w", key, err)
		}
		return nil
	}
	return c.Set(ctx, key, r, jitter(ttl))
}

// jitter spreads expirations so co-warmed keys do not all lapse at once.
func jitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	return ttl + time.Duration(rand.Int63n(int64(ttl)/10+1))
}
