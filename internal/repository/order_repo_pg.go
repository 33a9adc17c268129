package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"flashdeal/dealhub/internal/model"
)

type pgVoucherOrderRepository struct {
	db *gorm.DB
}

func NewPGVoucherOrderRepository(db *gorm.DB) VoucherOrderRepository {
	return &pgVoucherOrderRepository{db: db}
}

func (r *pgVoucherOrderRepository) CreateWithStockDecrement(ctx context.Context, order *model.VoucherOrder) (CreateOutcome, error) {
	outcome := CreateOutcomeCreated
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.VoucherOrder{}).
			Where("user_id = ? AND voucher_id = ?", order.UserID, order.VoucherID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			outcome = CreateOutcomeDuplicate
			return nil
		}

		// Optimistic guard: the decrement only applies while stock remains.
		res := tx.Model(&model.SeckillVoucher{}).
			Where("voucher_id = ? AND stock > 0", order.VoucherID).
			UpdateColumn("stock", gorm.Expr("stock - 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			outcome = CreateOutcomeOutOfStock
			return nil
		}

		return tx.Create(order).Error
	})
	if err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (r *pgVoucherOrderRepository) ExistsByUserAndVoucher(ctx context.Context, userID, voucherID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.VoucherOrder{}).
		Where("user_id = ? AND voucher_id = ?", userID, voucherID).
		Count(&count).Error
	return count > 0, err
}

func (r *pgVoucherOrderRepository) GetByID(ctx context.Context, id int64) (*model.VoucherOrder, error) {
	var order model.VoucherOrder
	err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
