package service

import "errors"

var (
	ErrShopNotFound      = errors.New("shop not found")
	ErrVoucherNotFound   = errors.New("voucher not found")
	ErrSeckillNotStarted = errors.New("seckill has not started yet")
	ErrSeckillEnded      = errors.New("seckill has ended")
	ErrOutOfStock        = errors.New("voucher out of stock")
	ErrDuplicateOrder    = errors.New("user already ordered this voucher")
)
