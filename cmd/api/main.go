package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/leonmuriithi/transit-core-poc/internal/api"
	"github.com/leonmuriithi/transit-core-poc/internal/api/handler"
	apimiddleware "github.com/leonmuriithi/transit-core-poc/internal/api/middleware"
	"github.com/leonmuriithi/transit-core-poc/internal/application"
	"github.com/leonmuriithi/transit-core-poc/internal/config"
	"github.com/leonmuriithi/transit-core-poc/internal/infrastructure/mpesa"
	"github.com/leonmuriithi/transit-core-poc/internal/infrastructure/postgres"
	redisinfra "github.com/leonmuriithi/transit-core-poc/internal/infrastructure/redis"
	"github.com/leonmuriithi/transit-core-poc/internal/locking"
	"github.com/leonmuriithi/transit-core-poc/internal/pkg/logger"
	"github.com/leonmuriithi/transit-core-poc/internal/pkg/metrics"
	"github.com/leonmuriithi/transit-core-poc/internal/worker"
)

func main() {
	// .env があれば読み込む（なければ環境変数のみで動作）
	_ = godotenv.Load()

	cfg := config.Load()

	// ロガー初期化
	log := logger.NewLogger(os.Getenv("APP_ENV"))
	logger.Set(log)
	defer logger.Sync()

	// メトリクス初期化
	m := metrics.Init()

	// DB接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("DB接続に失敗", zap.Error(err))
	}
	defer db.Close()

	// マイグレーション実行
	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}
	if err := postgres.RunMigrations(db.DB, migrationsPath); err != nil {
		logger.Fatal("マイグレーションに失敗", zap.Error(err))
	}

	// Redis接続
	redisClient := redisinfra.NewClient(&cfg.Redis)
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisinfra.Ping(ctx, redisClient); err != nil {
		logger.Fatal("Redis接続に失敗", zap.Error(err))
	}

	lockManager := redisinfra.NewLockManager(redisClient)
	availabilityCache := redisinfra.NewAvailabilityCache(redisClient)

	// リポジトリ
	routeRepo := postgres.NewRouteRepository(db)
	inventoryRepo := postgres.NewInventoryRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	txManager := postgres.NewTxManager(db)

	// ロックエンジンと決済ゲートウェイ
	engine := locking.NewEngine(inventoryRepo)
	paymentGateway := mpesa.NewClient(&cfg.Mpesa)

	// サービス
	routeService := application.NewRouteService(routeRepo, inventoryRepo)
	availabilityService := application.NewAvailabilityService(inventoryRepo, routeRepo, availabilityCache)
	bookingService := application.NewBookingService(
		txManager,
		bookingRepo,
		routeRepo,
		inventoryRepo,
		engine,
		lockManager,
		paymentGateway,
		availabilityCache,
		cfg.Lock.HoldWindow,
	)

	// ハンドラ
	routeHandler := handler.NewRouteHandler(routeService)
	availabilityHandler := handler.NewAvailabilityHandler(availabilityService)
	bookingHandler := handler.NewBookingHandler(bookingService)
	paymentHandler := handler.NewPaymentHandler(bookingService)
	healthHandler := handler.NewHealthHandler()

	// Echo セットアップ
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	apimiddleware.SetupMiddleware(e)
	e.Use(apimiddleware.PrometheusMiddleware(m))

	e.GET("/health", healthHandler.Check)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), apimiddleware.MetricsBasicAuth())

	v1 := e.Group("/api/v1")
	v1.POST("/routes", routeHandler.Create)
	v1.GET("/routes", routeHandler.List)
	v1.GET("/routes/:id", routeHandler.GetByID)
	v1.POST("/routes/:id/inventory", routeHandler.PublishInventory)

	v1.GET("/routes/:id/inventory/seat", availabilityHandler.GetBySeat)
	v1.GET("/routes/:id/inventory/open-count", availabilityHandler.CountOpen)

	v1.POST("/bookings", bookingHandler.Create)
	v1.GET("/bookings", bookingHandler.GetUserBookings)
	v1.GET("/bookings/:ticket_id", bookingHandler.GetByTicketID)

	v1.POST("/payments/mpesa/callback", paymentHandler.MpesaCallback)

	// 期限切れロックスイーパー起動
	sweeperCtx, sweeperCancel := context.WithCancel(context.Background())
	sweeper := worker.NewExpiredLockSweeper(bookingService, cfg.Lock.SweepInterval)
	go sweeper.Start(sweeperCtx)

	// サーバー起動
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	sweeperCancel()
	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("サーバーシャットダウンエラー", zap.Error(err))
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}
