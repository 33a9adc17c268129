package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"flashdeal/dealhub/internal/config"
	"flashdeal/dealhub/internal/lock"
	"flashdeal/dealhub/internal/model"
	"flashdeal/dealhub/internal/repository"
)

const recoveryPause = 20 * time.Millisecond

// maxEntryRetries caps reprocessing of a single pending entry before it is
// moved to the dead-letter stream, so one poison entry cannot wedge recovery.
const maxEntryRetries = 3

// errUserBusy marks a lock-contention skip: the entry stays pending and is
// retried, but it never counts toward the dead-letter threshold.
var errUserBusy = errors.New("order for user is being processed elsewhere")

// purchaseIntent is an admitted purchase read back from the stream.
type purchaseIntent struct {
	OrderID   int64
	UserID    int64
	VoucherID int64
}

// OrderWorker is the durable half of the seckill flow: it consumes admitted
// purchase intents from the stream, serializes per-user order creation through
// the distributed lock, and commits the idempotent durable write. Delivery is
// at least once; the (user, voucher) uniqueness check absorbs redelivery.
type OrderWorker struct {
	rdb    *redis.Client
	orders repository.VoucherOrderRepository
	locks  repository.StateStore
	logger *zap.Logger

	stream           string
	group            string
	deadLetterStream string
	consumer         string
	blockTimeout     time.Duration
	orderLockTTL     time.Duration
}

func NewOrderWorker(
	rdb *redis.Client,
	orders repository.VoucherOrderRepository,
	locks repository.StateStore,
	logger *zap.Logger,
	cfg config.SeckillConfig,
) *OrderWorker {
	host, _ := os.Hostname()
	w := &OrderWorker{
		rdb:              rdb,
		orders:           orders,
		locks:            locks,
		logger:           logger,
		stream:           cfg.Stream,
		group:            cfg.Group,
		deadLetterStream: cfg.DeadLetterStream,
		consumer:         fmt.Sprintf("%s-%d", host, os.Getpid()),
		blockTimeout:     cfg.BlockTimeout,
		orderLockTTL:     cfg.OrderLockTTL,
	}
	if w.stream == "" {
		w.stream = "stream.orders"
	}
	if w.group == "" {
		w.group = "g1"
	}
	if w.deadLetterStream == "" {
		w.deadLetterStream = w.stream + ".dead"
	}
	if w.blockTimeout <= 0 {
		w.blockTimeout = 2 * time.Second
	}
	if w.orderLockTTL <= 0 {
		w.orderLockTTL = 10 * time.Second
	}
	return w
}

// Stream returns the stream this worker consumes; the admission script
// appends to the same name.
func (w *OrderWorker) Stream() string { return w.stream }

// EnsureGroup creates the consumer group (and the stream) if missing.
func (w *OrderWorker) EnsureGroup(ctx context.Context) error {
	err := w.rdb.XGroupCreateMkStream(ctx, w.stream, w.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", w.group, w.stream, err)
	}
	return nil
}

// Run is the worker's main loop: read one new entry with a bounded block,
// process, acknowledge. The bounded block keeps the loop responsive to ctx
// cancellation; any processing error routes into the recovery loop instead of
// crashing the worker.
func (w *OrderWorker) Run(ctx context.Context) {
	w.logger.Info("order worker started",
		zap.String("stream", w.stream),
		zap.String("group", w.group),
		zap.String("consumer", w.consumer))

	for {
		if ctx.Err() != nil {
			w.logger.Info("order worker stopped")
			return
		}

		res, err := w.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    w.group,
			Consumer: w.consumer,
			Streams:  []string{w.stream, ">"},
			Count:    1,
			Block:    w.blockTimeout,
		}).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("order worker stopped")
				return
			}
			w.logger.Error("read order stream", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if len(res) == 0 || len(res[0].Messages) == 0 {
			continue
		}

		if err := w.consume(ctx, res[0].Messages[0]); err != nil {
			w.logger.Error("process order entry", zap.Error(err))
			w.recoverPending(ctx)
		}
	}
}

// consume processes one entry and acknowledges it. Malformed entries are
// moved straight to the dead-letter stream: redelivery cannot fix them.
func (w *OrderWorker) consume(ctx context.Context, msg redis.XMessage) error {
	intent, err := parseIntent(msg)
	if err != nil {
		w.deadLetter(ctx, msg, err)
		return nil
	}
	if err := w.processIntent(ctx, intent); err != nil {
		return err
	}
	if err := w.rdb.XAck(ctx, w.stream, w.group, msg.ID).Err(); err != nil {
		return fmt.Errorf("ack entry %s: %w", msg.ID, err)
	}
	return nil
}

// recoverPending drains this consumer's delivered-but-unacknowledged entries,
// oldest first. An empty read returns control to the main loop. Failures pause
// briefly before retrying the same entry; after maxEntryRetries genuine
// failures the entry is dead-lettered.
func (w *OrderWorker) recoverPending(ctx context.Context) {
	failures := make(map[string]int)

	for {
		if ctx.Err() != nil {
			return
		}

		res, err := w.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    w.group,
			Consumer: w.consumer,
			Streams:  []string{w.stream, "0"},
			Count:    1,
			Block:    -1,
		}).Result()
		if err == redis.Nil {
			return
		}
		if err != nil {
			w.logger.Error("read pending entries", zap.Error(err))
			time.Sleep(recoveryPause)
			continue
		}
		if len(res) == 0 || len(res[0].Messages) == 0 {
			return
		}

		msg := res[0].Messages[0]
		err = w.consume(ctx, msg)
		if err == nil {
			continue
		}
		if errors.Is(err, errUserBusy) {
			time.Sleep(recoveryPause)
			continue
		}

		failures[msg.ID]++
		w.logger.Error("reprocess pending entry",
			zap.String("entry_id", msg.ID),
			zap.Int("failures", failures[msg.ID]),
			zap.Error(err))
		if failures[msg.ID] >= maxEntryRetries {
			w.deadLetter(ctx, msg, err)
			delete(failures, msg.ID)
			continue
		}
		time.Sleep(recoveryPause)
	}
}

// processIntent is the only durable-write path. The per-user lock serializes
// order creation for one user across workers and redelivery; contention means
// another worker has it, so the entry is left pending for a later retry.
func (w *OrderWorker) processIntent(ctx context.Context, intent purchaseIntent) error {
	mtx := lock.NewMutex(w.locks, fmt.Sprintf("%s%d", orderLockPrefix, intent.UserID))
	acquired, err := mtx.TryLock(ctx, w.orderLockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		w.logger.Info("user order locked elsewhere", zap.Int64("user_id", intent.UserID))
		return errUserBusy
	}
	defer func() {
		if err := mtx.Unlock(context.WithoutCancel(ctx)); err != nil {
			w.logger.Warn("release order lock", zap.Int64("user_id", intent.UserID), zap.Error(err))
		}
	}()

	order := &model.VoucherOrder{
		ID:        intent.OrderID,
		UserID:    intent.UserID,
		VoucherID: intent.VoucherID,
		PayType:   1,
		Status:    model.OrderStatusUnpaid,
	}
	outcome, err := w.orders.CreateWithStockDecrement(ctx, order)
	if err != nil {
		return fmt.Errorf("commit order %d: %w", intent.OrderID, err)
	}

	switch outcome {
	case repository.CreateOutcomeDuplicate:
		w.logger.Info("order already committed, skipping",
			zap.Int64("user_id", intent.UserID),
			zap.Int64("voucher_id", intent.VoucherID))
	case repository.CreateOutcomeOutOfStock:
		// The admission gate should have stopped this; guard against drift.
		w.logger.Warn("durable stock exhausted, dropping admitted intent",
			zap.Int64("order_id", intent.OrderID),
			zap.Int64("voucher_id", intent.VoucherID))
	default:
		w.logger.Info("order committed",
			zap.Int64("order_id", intent.OrderID),
			zap.Int64("user_id", intent.UserID),
			zap.Int64("voucher_id", intent.VoucherID))
	}
	return nil
}

// deadLetter copies the entry to the dead-letter stream and acknowledges the
// original. If the copy fails the entry is left pending so it is not lost.
func (w *OrderWorker) deadLetter(ctx context.Context, msg redis.XMessage, cause error) {
	err := w.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: w.deadLetterStream,
		Values: msg.Values,
	}).Err()
	if err != nil {
		w.logger.Error("dead-letter entry", zap.String("entry_id", msg.ID), zap.Error(err))
		return
	}
	if err := w.rdb.XAck(ctx, w.stream, w.group, msg.ID).Err(); err != nil {
		w.logger.Error("ack dead-lettered entry", zap.String("entry_id", msg.ID), zap.Error(err))
		return
	}
	w.logger.Error("entry moved to dead-letter stream",
		zap.String("entry_id", msg.ID),
		zap.String("stream", w.deadLetterStream),
		zap.Error(cause))
}

func parseIntent(msg redis.XMessage) (purchaseIntent, error) {
	var intent purchaseIntent
	var err error
	if intent.OrderID, err = intentField(msg, "id"); err != nil {
		return intent, err
	}
	if intent.UserID, err = intentField(msg, "userId"); err != nil {
		return intent, err
	}
	if intent.VoucherID, err = intentField(msg, "voucherId"); err != nil {
		return intent, err
	}
	return intent, nil
}

func intentField(msg redis.XMessage, field string) (int64, error) {
	raw, ok := msg.Values[field]
	if !ok {
		return 0, fmt.Errorf("entry %s: missing field %q", msg.ID, field)
	}
	s, ok := raw.(string)
	if !ok {
		return 0, fmt.Errorf("entry %s: field %q is not a string", msg.ID, field)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("entry %s: field %q: %w", msg.ID, field, err)
	}
	return v, nil
}
