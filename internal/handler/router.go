package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"flashdeal/dealhub/internal/config"
	"flashdeal/dealhub/internal/handler/middleware"
	jwtpkg "flashdeal/dealhub/pkg/jwt"
)

func SetupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	jwtManager *jwtpkg.Manager,
	shopHandler *ShopHandler,
	voucherHandler *VoucherHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Public read paths
	public := r.Group("/api/v1")
	{
		public.GET("/shops/:id", shopHandler.GetByID)
		public.GET("/shop-types", shopHandler.ListTypes)
	}

	// Protected routes
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth(jwtManager))
	{
		protected.PUT("/shops", shopHandler.Update)
		protected.POST("/vouchers/seckill", voucherHandler.PublishSeckill)
		protected.POST("/vouchers/:id/seckill", voucherHandler.Seckill)
	}

	return r
}
