package repository

import (
	"context"

	"flashdeal/dealhub/internal/model"
)

type ShopRepository interface {
	// GetByID returns (nil, nil) when the shop does not exist; the cache
	// layer treats a nil result as a confirmed absence worth caching.
	GetByID(ctx context.Context, id int64) (*model.Shop, error)
	Update(ctx context.Context, shop *model.Shop) error
	ListTypes(ctx context.Context) ([]model.ShopType, error)
}
