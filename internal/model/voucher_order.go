package model

import "time"

type OrderStatus int

const (
	OrderStatusUnpaid   OrderStatus = 1
	OrderStatusPaid     OrderStatus = 2
	OrderStatusRedeemed OrderStatus = 3
	OrderStatusRefunded OrderStatus = 4
)

// VoucherOrder is a committed purchase. Its ID is assigned by the ID generator
// before admission, never by the database.
type VoucherOrder struct {
	ID        int64       `gorm:"primaryKey" json:"id"`
	UserID    int64       `gorm:"not null" json:"user_id"`
	VoucherID int64       `gorm:"not null" json:"voucher_id"`
	PayType   int         `gorm:"type:smallint;not null;default:1" json:"pay_type"`
	Status    OrderStatus `gorm:"type:smallint;not null;default:1" json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	PayTime   *time.Time  `json:"pay_time,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (VoucherOrder) TableName() string { return "voucher_orders" }
