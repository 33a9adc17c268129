// Package lock provides a distributed mutual-exclusion lock on top of the
// shared state store. Acquisition is a non-blocking set-if-absent with a TTL
// safety valve; release is identity-checked so an expired holder can never
// delete a lock someone else has since acquired.
package lock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"flashdeal/dealhub/internal/repository"
)

const keyPrefix = "lock:"

// processID makes holder identities unique across processes; the per-mutex
// counter makes them unique within one.
var (
	processID = uuid.NewString()
	mutexSeq  atomic.Int64
)

// Mutex is a named distributed lock. It is not re-entrant: a holder calling
// TryLock again on the same name contends with itself.
type Mutex struct {
	store repository.StateStore
	key   string
	token []byte
}

func NewMutex(store repository.StateStore, name string) *Mutex {
	return &Mutex{
		store: store,
		key:   keyPrefix + name,
		token: []byte(fmt.Sprintf("%s-%d", processID, mutexSeq.Add(1))),
	}
}

// TryLock attempts to acquire the lock, returning false immediately on
// contention. The TTL bounds how long a crashed holder can wedge the resource.
func (m *Mutex) TryLock(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := m.store.SetIfAbsent(ctx, m.key, m.token, ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", m.key, err)
	}
	return ok, nil
}

// Unlock releases the lock if this mutex still holds it. Releasing a lock held
// by someone else (or not held at all) is a no-op, never an error.
func (m *Mutex) Unlock(ctx context.Context) error {
	if _, err := m.store.CompareAndDelete(ctx, m.key, m.token); err != nil {
		return fmt.Errorf("release lock %s: %w", m.key, err)
	}
	return nil
}
