package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sarvbot/internal/bootstrap"
	"sarvbot/internal/config"
	"sarvbot/internal/handler/api"
	"sarvbot/internal/notify"
	"sarvbot/internal/panel"
	"sarvbot/internal/purchase"
	"sarvbot/internal/repository"
	"sarvbot/internal/router"
	"sarvbot/internal/worker"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := bootstrap.NewDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database schema", zap.Error(err))
	}

	// --- Redis (worker run locks) ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Pass,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Warn("Redis unavailable, worker locks degrade to single-instance mode", zap.Error(err))
		rdb = nil
	}

	// --- Repositories ---
	users := repository.NewUserRepository(db)
	products := repository.NewProductRepository(db)
	panels := repository.NewPanelRepository(db)
	invoices := repository.NewInvoiceRepository(db)
	purchases := repository.NewPurchaseStore(db)

	// --- Notifier ---
	notifier, err := notify.New(cfg.Telegram.Token, cfg.Telegram.AdminChannel, logger.Named("notify"))
	if err != nil {
		logger.Fatal("Failed to create notifier", zap.Error(err))
	}

	// --- Panel adapters ---
	adapters := panel.NewRegistry(logger.Named("panel"))

	// --- Purchase service ---
	buyer := purchase.New(&purchase.DBStore{
		Users:     users,
		Products:  products,
		Panels:    panels,
		Purchases: purchases,
	}, adapters, cfg.Purchase.ReferralReward, logger.Named("purchase"))

	// --- Reconciliation workers ---
	scheduler := worker.New(&cfg.Workers, invoices, panels, adapters, notifier, rdb, logger.Named("worker"))
	scheduler.Start()

	// --- HTTP server ---
	e := echo.New()
	e.HideBanner = true
	router.Setup(e, api.NewAdminHandler(panels, adapters, buyer, logger.Named("api")), cfg.API.Key, logger.Named("http"))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
