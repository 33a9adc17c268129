package repository

import (
	"context"
	"time"
)

// StateStore abstracts ephemeral key-value state shared across processes:
// cache entries, rebuild locks, and distributed mutexes.
// Implementations: Redis (production) or in-memory (local dev / tests).
type StateStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// SetIfAbsent atomically writes the value only when the key does not
	// exist. Returns true when the write happened.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// CompareAndDelete removes the key only when its current value equals
	// the given one, in a single server-side step. Returns true when the
	// key was removed.
	CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error)
}
