package model

import "time"

type VoucherType int

const (
	VoucherTypeNormal  VoucherType = 0
	VoucherTypeSeckill VoucherType = 1
)

type VoucherStatus int

const (
	VoucherStatusOnSale  VoucherStatus = 1
	VoucherStatusExpired VoucherStatus = 2
	VoucherStatusPaused  VoucherStatus = 3
)

type Voucher struct {
	ID          int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	ShopID      int64         `gorm:"not null;index" json:"shop_id"`
	Title       string        `gorm:"type:varchar(255);not null" json:"title"`
	SubTitle    string        `gorm:"type:varchar(255)" json:"sub_title"`
	Rules       string        `gorm:"type:text" json:"rules"`
	PayValue    int64         `gorm:"not null" json:"pay_value"`
	ActualValue int64         `gorm:"not null" json:"actual_value"`
	Type        VoucherType   `gorm:"type:smallint;not null;default:0" json:"type"`
	Status      VoucherStatus `gorm:"type:smallint;not null;default:1" json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (Voucher) TableName() string { return "vouchers" }

// SeckillVoucher carries the limited-stock attributes of a flash-sale voucher.
// Stock only ever decreases through the conditional update in the order
// repository; it is never read-modified-written in application code.
type SeckillVoucher struct {
	VoucherID int64     `gorm:"primaryKey" json:"voucher_id"`
	Stock     int       `gorm:"not null" json:"stock"`
	BeginTime time.Time `gorm:"not null" json:"begin_time"`
	EndTime   time.Time `gorm:"not null" json:"end_time"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SeckillVoucher) TableName() string { return "seckill_vouchers" }
