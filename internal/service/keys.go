package service

// Redis key layout shared by the services and the order worker.
const (
	cacheShopKeyPrefix = "cache:shop:"
	// Warmed shops live in their own key space: logical-expiry entries carry
	// an envelope the plain read-through tier cannot decode, so the two tiers
	// must never share a key.
	hotShopKeyPrefix = "cache:shop:hot:"
	cacheShopTypeKey = "cache:shop-type:list"

	seckillStockKeyPrefix = "seckill:stock:"
	seckillOrderKeyPrefix = "seckill:order:"

	orderLockPrefix = "order:"
)
