package model

import "gorm.io/gorm"

// AutoMigrate runs GORM auto-migration for all models and creates custom indexes.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&User{},
		&Shop{},
		&ShopType{},
		&Voucher{},
		&SeckillVoucher{},
		&VoucherOrder{},
	); err != nil {
		return err
	}

	// One committed order per (user, voucher); the pipeline relies on this as
	// the final guard under at-least-once delivery.
	if err := db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_user_voucher " +
			"ON voucher_orders (user_id, voucher_id)",
	).Error; err != nil {
		return err
	}

	// Stock must never go negative even if a conditional update slips through.
	return db.Exec(
		"ALTER TABLE seckill_vouchers DROP CONSTRAINT IF EXISTS chk_seckill_stock_non_negative;" +
			"ALTER TABLE seckill_vouchers ADD CONSTRAINT chk_seckill_stock_non_negative CHECK (stock >= 0)",
	).Error
}
