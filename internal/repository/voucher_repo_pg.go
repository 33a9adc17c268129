package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"flashdeal/dealhub/internal/model"
)

type pgVoucherRepository struct {
	db *gorm.DB
}

func NewPGVoucherRepository(db *gorm.DB) VoucherRepository {
	return &pgVoucherRepository{db: db}
}

func (r *pgVoucherRepository) Create(ctx context.Context, voucher *model.Voucher) error {
	return r.db.WithContext(ctx).Create(voucher).Error
}

func (r *pgVoucherRepository) CreateSeckill(ctx context.Context, voucher *model.Voucher, seckill *model.SeckillVoucher) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(voucher).Error; err != nil {
			return err
		}
		seckill.VoucherID = voucher.ID
		return tx.Create(seckill).Error
	})
}

func (r *pgVoucherRepository) GetSeckill(ctx context.Context, voucherID int64) (*model.SeckillVoucher, error) {
	var seckill model.SeckillVoucher
	err := r.db.WithContext(ctx).First(&seckill, "voucher_id = ?", voucherID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &seckill, nil
}
