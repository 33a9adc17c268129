package repository

import (
	"context"

	"flashdeal/dealhub/internal/model"
)

type VoucherRepository interface {
	Create(ctx context.Context, voucher *model.Voucher) error

	// CreateSeckill persists the voucher and its stock row in one
	// transaction so a crash cannot leave a seckill voucher without stock.
	CreateSeckill(ctx context.Context, voucher *model.Voucher, seckill *model.SeckillVoucher) error

	GetSeckill(ctx context.Context, voucherID int64) (*model.SeckillVoucher, error)
}
