package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"flashdeal/dealhub/internal/model"
)

type pgShopRepository struct {
	db *gorm.DB
}

func NewPGShopRepository(db *gorm.DB) ShopRepository {
	return &pgShopRepository{db: db}
}

func (r *pgShopRepository) GetByID(ctx context.Context, id int64) (*model.Shop, error) {
	var shop model.Shop
	err := r.db.WithContext(ctx).First(&shop, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *pgShopRepository) Update(ctx context.Context, shop *model.Shop) error {
	return r.db.WithContext(ctx).Save(shop).Error
}

func (r *pgShopRepository) ListTypes(ctx context.Context) ([]model.ShopType, error) {
	var types []model.ShopType
	err := r.db.WithContext(ctx).Order("sort asc").Find(&types).Error
	return types, err
}
