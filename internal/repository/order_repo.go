package repository

import (
	"context"

	"flashdeal/dealhub/internal/model"
)

// CreateOutcome reports what a durable order write decided.
type CreateOutcome int

const (
	CreateOutcomeCreated CreateOutcome = iota
	// CreateOutcomeDuplicate means an order for (user, voucher) already
	// exists; expected under at-least-once redelivery.
	CreateOutcomeDuplicate
	// CreateOutcomeOutOfStock means the conditional stock decrement matched
	// no row. The cache-tier admission gate should make this rare.
	CreateOutcomeOutOfStock
)

type VoucherOrderRepository interface {
	// CreateWithStockDecrement performs the only durable write of the order
	// pipeline: within one transaction it re-checks (user, voucher)
	// uniqueness, decrements stock where stock > 0, and inserts the order.
	CreateWithStockDecrement(ctx context.Context, order *model.VoucherOrder) (CreateOutcome, error)

	ExistsByUserAndVoucher(ctx context.Context, userID, voucherID int64) (bool, error)
	GetByID(ctx context.Context, id int64) (*model.VoucherOrder, error)
}
