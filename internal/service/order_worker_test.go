package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flashdeal/dealhub/internal/config"
	"flashdeal/dealhub/internal/model"
	"flashdeal/dealhub/internal/repository"
)

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[int64]*model.VoucherOrder
	byUser map[string]int64 // "user:voucher" -> order id

	// failuresLeft makes the next N writes fail, for retry paths.
	failuresLeft int
	outcome      repository.CreateOutcome
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders: make(map[int64]*model.VoucherOrder),
		byUser: make(map[string]int64),
	}
}

func userVoucherKey(userID, voucherID int64) string {
	return fmt.Sprintf("%d:%d", userID, voucherID)
}

func (f *fakeOrderRepo) CreateWithStockDecrement(_ context.Context, order *model.VoucherOrder) (repository.CreateOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return 0, errors.New("database unavailable")
	}
	if f.outcome != repository.CreateOutcomeCreated {
		return f.outcome, nil
	}
	key := userVoucherKey(order.UserID, order.VoucherID)
	if _, ok := f.byUser[key]; ok {
		return repository.CreateOutcomeDuplicate, nil
	}
	f.orders[order.ID] = order
	f.byUser[key] = order.ID
	return repository.CreateOutcomeCreated, nil
}

func (f *fakeOrderRepo) ExistsByUserAndVoucher(_ context.Context, userID, voucherID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byUser[userVoucherKey(userID, voucherID)]
	return ok, nil
}

func (f *fakeOrderRepo) GetByID(_ context.Context, id int64) (*model.VoucherOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id], nil
}

func (f *fakeOrderRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func newWorkerFixture(t *testing.T) (*OrderWorker, *fakeOrderRepo, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := newFakeOrderRepo()
	w := NewOrderWorker(rdb, repo, repository.NewMemoryStateStore(), zap.NewNop(), config.SeckillConfig{
		Stream:       "stream.orders",
		Group:        "g1",
		BlockTimeout: 100 * time.Millisecond,
		OrderLockTTL: time.Second,
	})
	require.NoError(t, w.EnsureGroup(context.Background()))
	return w, repo, rdb
}

func addIntent(t *testing.T, rdb *redis.Client, orderID, userID, voucherID int64) {
	t.Helper()
	err := rdb.XAdd(context.Background(), &redis.XAddArgs{
		Stream: "stream.orders",
		Values: map[string]any{
			"id":        strconv.FormatInt(orderID, 10),
			"userId":    strconv.FormatInt(userID, 10),
			"voucherId": strconv.FormatInt(voucherID, 10),
		},
	}).Err()
	require.NoError(t, err)
}

// readOne delivers the next new entry to the worker's consumer.
func readOne(t *testing.T, w *OrderWorker, rdb *redis.Client) redis.XMessage {
	t.Helper()
	res, err := rdb.XReadGroup(context.Background(), &redis.XReadGroupArgs{
		Group:    "g1",
		Consumer: w.consumer,
		Streams:  []string{"stream.orders", ">"},
		Count:    1,
		Block:    -1,
	}).Result()
	require.NoError(t, err)
	require.NotEmpty(t, res)
	require.NotEmpty(t, res[0].Messages)
	return res[0].Messages[0]
}

func pendingCount(t *testing.T, rdb *redis.Client) int64 {
	t.Helper()
	p, err := rdb.XPending(context.Background(), "stream.orders", "g1").Result()
	require.NoError(t, err)
	return p.Count
}

func TestConsumeCommitsAndAcks(t *testing.T) {
	ctx := context.Background()
	w, repo, rdb := newWorkerFixture(t)

	addIntent(t, rdb, 1001, 42, 7)
	msg := readOne(t, w, rdb)
	require.NoError(t, w.consume(ctx, msg))

	order, err := repo.GetByID(ctx, 1001)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, int64(42), order.UserID)
	assert.Equal(t, int64(7), order.VoucherID)
	assert.Equal(t, model.OrderStatusUnpaid, order.Status)

	assert.Zero(t, pendingCount(t, rdb), "committed entries must be acknowledged")
}

func TestConsumeRedeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	w, repo, rdb := newWorkerFixture(t)

	addIntent(t, rdb, 1001, 42, 7)
	addIntent(t, rdb, 1001, 42, 7) // same intent delivered twice

	require.NoError(t, w.consume(ctx, readOne(t, w, rdb)))
	require.NoError(t, w.consume(ctx, readOne(t, w, rdb)))

	assert.Equal(t, 1, repo.count(), "redelivery must not create a second order")
	assert.Zero(t, pendingCount(t, rdb), "the duplicate is acknowledged, not retried")
}

func TestConsumeMalformedEntryIsDeadLettered(t *testing.T) {
	ctx := context.Background()
	w, repo, rdb := newWorkerFixture(t)

	err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: "stream.orders",
		Values: map[string]any{"id": "not-a-number", "userId": "42", "voucherId": "7"},
	}).Err()
	require.NoError(t, err)

	require.NoError(t, w.consume(ctx, readOne(t, w, rdb)))

	assert.Zero(t, repo.count())
	assert.Zero(t, pendingCount(t, rdb))

	dead, err := rdb.XLen(ctx, "stream.orders.dead").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}

func TestRecoverPendingRetriesUntilSuccess(t *testing.T) {
	ctx := context.Background()
	w, repo, rdb := newWorkerFixture(t)

	repo.failuresLeft = 2
	addIntent(t, rdb, 1001, 42, 7)
	msg := readOne(t, w, rdb)
	require.Error(t, w.consume(ctx, msg), "first attempt hits the failing store")

	w.recoverPending(ctx)

	assert.Equal(t, 1, repo.count(), "entry commits once the store recovers")
	assert.Zero(t, pendingCount(t, rdb))
	dead, err := rdb.XLen(ctx, "stream.orders.dead").Result()
	require.NoError(t, err)
	assert.Zero(t, dead)
}

func TestRecoverPendingDeadLettersPoisonEntry(t *testing.T) {
	ctx := context.Background()
	w, repo, rdb := newWorkerFixture(t)

	repo.failuresLeft = 100 // never recovers within this test
	addIntent(t, rdb, 1001, 42, 7)
	require.Error(t, w.consume(ctx, readOne(t, w, rdb)))

	w.recoverPending(ctx)

	assert.Zero(t, repo.count())
	assert.Zero(t, pendingCount(t, rdb), "the poison entry is acked after dead-lettering")

	dead, err := rdb.XRange(ctx, "stream.orders.dead", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "1001", dead[0].Values["id"])
}

func TestProcessIntentSkipsWhenUserLocked(t *testing.T) {
	ctx := context.Background()
	w, repo, _ := newWorkerFixture(t)

	// Another worker holds this user's order lock.
	held, err := w.locks.SetIfAbsent(ctx, "lock:order:42", []byte("other-holder"), time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	err = w.processIntent(ctx, purchaseIntent{OrderID: 1001, UserID: 42, VoucherID: 7})
	assert.ErrorIs(t, err, errUserBusy)
	assert.Zero(t, repo.count())

	// The holder's lock survives the contention.
	val, err := w.locks.Get(ctx, "lock:order:42")
	require.NoError(t, err)
	assert.Equal(t, []byte("other-holder"), val)
}

func TestRunDrainsStreamAndStops(t *testing.T) {
	w, repo, rdb := newWorkerFixture(t)

	for i := 0; i < 5; i++ {
		addIntent(t, rdb, int64(1000+i), int64(i+1), 7)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	require.Eventually(t, func() bool { return repo.count() == 5 }, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}

	assert.Zero(t, pendingCount(t, rdb))
}
