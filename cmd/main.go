package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"flashdeal/dealhub/internal/cache"
	"flashdeal/dealhub/internal/config"
	"flashdeal/dealhub/internal/handler"
	"flashdeal/dealhub/internal/idgen"
	"flashdeal/dealhub/internal/model"
	"flashdeal/dealhub/internal/repository"
	"flashdeal/dealhub/internal/service"
	jwtpkg "flashdeal/dealhub/pkg/jwt"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Initialize logger
	var logger *zap.Logger
	if cfg.Log.Format == "json" {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	// 3. Connect to PostgreSQL
	db, err := config.NewPostgresDB(cfg.Database.Postgres)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}

	// 4. Auto-migrate if enabled
	if cfg.Database.Postgres.AutoMigrate {
		if err := model.AutoMigrate(db); err != nil {
			logger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		logger.Info("database migration completed")
	}

	// 5. Connect to Redis (admission scripts, streams, and id counters
	// always live there; the state backend switch below only covers cache
	// entries and locks)
	redisClient, err := config.NewRedisClient(cfg.Database.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}

	var stateStore repository.StateStore
	switch cfg.State.Backend {
	case "redis":
		stateStore = repository.NewRedisStateStore(redisClient)
		logger.Info("using Redis state store")
	case "memory":
		stateStore = repository.NewMemoryStateStore()
		logger.Info("using in-memory state store")
	default:
		logger.Fatal("unknown state backend", zap.String("backend", cfg.State.Backend))
	}

	// 6. Initialize repositories
	shopRepo := repository.NewPGShopRepository(db)
	voucherRepo := repository.NewPGVoucherRepository(db)
	orderRepo := repository.NewPGVoucherOrderRepository(db)

	// 7. Core primitives
	cacheClient := cache.NewClient(stateStore, logger, cfg.Cache.NullTTL, cfg.Cache.RebuildWorkers, cfg.Cache.RebuildQueue)
	defer cacheClient.Close()
	idGenerator := idgen.NewGenerator(redisClient)

	// 8. Initialize services
	shopService := service.NewShopService(shopRepo, cacheClient, logger, cfg.Cache.ShopTTL, cfg.Cache.ShopTypeTTL)
	seckillService := service.NewSeckillService(redisClient, voucherRepo, idGenerator, cfg.Seckill.Stream, logger)

	// 9. Order pipeline worker
	orderWorker := service.NewOrderWorker(redisClient, orderRepo, stateStore, logger, cfg.Seckill)
	if err := orderWorker.EnsureGroup(context.Background()); err != nil {
		logger.Fatal("failed to create consumer group", zap.Error(err))
	}
	workerCtx, stopWorker := context.WithCancel(context.Background())
	go orderWorker.Run(workerCtx)

	// 10. Initialize handlers
	jwtManager := jwtpkg.NewManager(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL)
	shopHandler := handler.NewShopHandler(shopService)
	voucherHandler := handler.NewVoucherHandler(seckillService)

	// 11. Setup router
	router := handler.SetupRouter(cfg, logger, jwtManager, shopHandler, voucherHandler)

	// 12. Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 13. Start server with graceful shutdown
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// 14. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited gracefully")
}
