package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"flashdeal/dealhub/internal/cache"
	"flashdeal/dealhub/internal/model"
	"flashdeal/dealhub/internal/repository"
)

type ShopService interface {
	GetByID(ctx context.Context, id int64) (*model.Shop, error)
	Update(ctx context.Context, shop *model.Shop) error
	ListTypes(ctx context.Context) ([]model.ShopType, error)

	// WarmShop pre-loads a hot shop into the logical-expiry cache. The
	// logical-expiry read path assumes warmed keys and never rebuilds a
	// true miss itself.
	WarmShop(ctx context.Context, id int64, ttl time.Duration) error
}

type shopService struct {
	shops       repository.ShopRepository
	cache       *cache.Client
	logger      *zap.Logger
	shopTTL     time.Duration
	shopTypeTTL time.Duration
}

func NewShopService(shops repository.ShopRepository, cacheClient *cache.Client, logger *zap.Logger, shopTTL, shopTypeTTL time.Duration) ShopService {
	return &shopService{
		shops:       shops,
		cache:       cacheClient,
		logger:      logger,
		shopTTL:     shopTTL,
		shopTypeTTL: shopTypeTTL,
	}
}

// GetByID serves hot shops from the logical-expiry cache. Keys that were
// never warmed fall back to the mutex-guarded read-through path, which bounds
// concurrent rebuilders to one and caches confirmed absence. The tiers keep
// disjoint key spaces; their entry encodings are incompatible.
func (s *shopService) GetByID(ctx context.Context, id int64) (*model.Shop, error) {
	shop, err := cache.QueryWithLogicalExpire(ctx, s.cache, hotShopKeyPrefix, id, s.shops.GetByID, s.shopTTL)
	if err != nil {
		return nil, err
	}
	if shop == nil {
		shop, err = cache.QueryWithMutex(ctx, s.cache, cacheShopKeyPrefix, id, s.shops.GetByID, s.shopTTL)
		if err != nil {
			return nil, err
		}
	}
	if shop == nil {
		return nil, ErrShopNotFound
	}
	return shop, nil
}

// Update writes the durable row first, then drops the cache entry; the next
// read rebuilds it. Deleting rather than rewriting avoids stale overwrites
// from racing updaters.
func (s *shopService) Update(ctx context.Context, shop *model.Shop) error {
	if err := s.shops.Update(ctx, shop); err != nil {
		return err
	}
	// Both tiers may hold this shop; drop whichever entries exist.
	for _, key := range []string{
		cache.Key(cacheShopKeyPrefix, shop.ID),
		cache.Key(hotShopKeyPrefix, shop.ID),
	} {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			// The durable write stands; an undeleted entry ages out via TTL.
			s.logger.Warn("invalidate shop cache", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

func (s *shopService) ListTypes(ctx context.Context) ([]model.ShopType, error) {
	load := func(ctx context.Context, _ string) (*[]model.ShopType, error) {
		types, err := s.shops.ListTypes(ctx)
		if err != nil {
			return nil, err
		}
		return &types, nil
	}
	types, err := cache.QueryWithPassThrough(ctx, s.cache, cacheShopTypeKey, "", load, s.shopTypeTTL)
	if err != nil {
		return nil, err
	}
	if types == nil {
		return nil, nil
	}
	return *types, nil
}

func (s *shopService) WarmShop(ctx context.Context, id int64, ttl time.Duration) error {
	shop, err := s.shops.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if shop == nil {
		return ErrShopNotFound
	}
	return s.cache.SetWithLogicalExpire(ctx, cache.Key(hotShopKeyPrefix, id), shop, ttl)
}
