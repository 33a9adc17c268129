package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"flashdeal/dealhub/internal/idgen"
	"flashdeal/dealhub/internal/model"
	"flashdeal/dealhub/internal/repository"
)

// admissionScript decides a purchase attempt in one atomic evaluation: stock
// check, duplicate-purchase check, stock decrement, dedup record, and intent
// enqueue all happen before any other client can observe the intermediate
// state. Splitting this into separate round trips would reintroduce the race
// it exists to close.
//
// KEYS[1] stream, ARGV: voucherId, userId, orderId.
// Returns 0 admitted, 1 out of stock, 2 duplicate order.
var admissionScript = redis.NewScript(fmt.Sprintf(`
local voucherId = ARGV[1]
local userId = ARGV[2]
local orderId = ARGV[3]

local stockKey = '%s' .. voucherId
local orderKey = '%s' .. voucherId

local stock = tonumber(redis.call('get', stockKey))
if (stock == nil or stock <= 0) then
    return 1
end
if (redis.call('sismember', orderKey, userId) == 1) then
    return 2
end

redis.call('incrby', stockKey, -1)
redis.call('sadd', orderKey, userId)
redis.call('xadd', KEYS[1], '*', 'id', orderId, 'userId', userId, 'voucherId', voucherId)
return 0
`, seckillStockKeyPrefix, seckillOrderKeyPrefix))

type SeckillService interface {
	// SubmitPurchase runs admission control for one purchase attempt and
	// returns the minted order id. Rejections come back as ErrOutOfStock,
	// ErrDuplicateOrder, ErrSeckillNotStarted, or ErrSeckillEnded; the
	// durable order is written asynchronously by the order worker.
	SubmitPurchase(ctx context.Context, userID, voucherID int64) (int64, error)

	// PublishSeckillVoucher persists a flash-sale voucher and warms its
	// stock counter in the cache tier, arming the admission gate.
	PublishSeckillVoucher(ctx context.Context, voucher *model.Voucher, stock int, beginTime, endTime time.Time) error
}

type seckillService struct {
	rdb      *redis.Client
	vouchers repository.VoucherRepository
	ids      *idgen.Generator
	stream   string
	logger   *zap.Logger
}

func NewSeckillService(rdb *redis.Client, vouchers repository.VoucherRepository, ids *idgen.Generator, stream string, logger *zap.Logger) SeckillService {
	return &seckillService{
		rdb:      rdb,
		vouchers: vouchers,
		ids:      ids,
		stream:   stream,
		logger:   logger,
	}
}

func (s *seckillService) SubmitPurchase(ctx context.Context, userID, voucherID int64) (int64, error) {
	seckill, err := s.vouchers.GetSeckill(ctx, voucherID)
	if err != nil {
		return 0, fmt.Errorf("load seckill voucher %d: %w", voucherID, err)
	}
	if seckill == nil {
		return 0, ErrVoucherNotFound
	}
	now := time.Now()
	if now.Before(seckill.BeginTime) {
		return 0, ErrSeckillNotStarted
	}
	if now.After(seckill.EndTime) {
		return 0, ErrSeckillEnded
	}

	// The id is minted before the atomic step so the enqueued intent
	// already carries it; a rejected attempt simply discards the id.
	orderID, err := s.ids.NextID(ctx, "order")
	if err != nil {
		return 0, err
	}

	verdict, err := admissionScript.Run(ctx, s.rdb,
		[]string{s.stream},
		strconv.FormatInt(voucherID, 10),
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(orderID, 10),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("run admission script: %w", err)
	}

	switch verdict {
	case 0:
		s.logger.Debug("purchase admitted",
			zap.Int64("order_id", orderID),
			zap.Int64("user_id", userID),
			zap.Int64("voucher_id", voucherID))
		return orderID, nil
	case 1:
		return 0, ErrOutOfStock
	case 2:
		return 0, ErrDuplicateOrder
	default:
		return 0, fmt.Errorf("unexpected admission verdict %d", verdict)
	}
}

func (s *seckillService) PublishSeckillVoucher(ctx context.Context, voucher *model.Voucher, stock int, beginTime, endTime time.Time) error {
	voucher.Type = model.VoucherTypeSeckill
	seckill := &model.SeckillVoucher{
		Stock:     stock,
		BeginTime: beginTime,
		EndTime:   endTime,
	}
	if err := s.vouchers.CreateSeckill(ctx, voucher, seckill); err != nil {
		return fmt.Errorf("create seckill voucher: %w", err)
	}

	key := seckillStockKeyPrefix + strconv.FormatInt(voucher.ID, 10)
	if err := s.rdb.Set(ctx, key, stock, 0).Err(); err != nil {
		return fmt.Errorf("warm stock counter %s: %w", key, err)
	}
	return nil
}
