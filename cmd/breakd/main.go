package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"break-reminder-backend/config"
	"break-reminder-backend/internal/api"
	"break-reminder-backend/internal/db"
	"break-reminder-backend/internal/logger"
	"break-reminder-backend/internal/notification"
	"break-reminder-backend/internal/store"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	// Setup logger
	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()
	zlog.Info("configuration loaded", zap.String("path", configPath))

	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, zlog)
	if err != nil {
		zlog.Fatal("failed to initialize database", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewCachedStore(store.NewGormStore(gormDB), cfg.Cache.ConfigTTL, zlog)
	zlog.Info("data store initialized", zap.Duration("config_cache_ttl", cfg.Cache.ConfigTTL))

	// Web push is optional; without VAPID keys notifications are only stored.
	var (
		webpushOptions *webpush.Options
		dispatcher     api.Dispatcher
	)
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, appStore, webpushOptions, zlog)
		pool.Start(ctx)
		dispatcher = pool
		zlog.Info("push worker pool started", zap.Int("workers", cfg.WorkerPool.Size))
	} else {
		zlog.Warn("VAPID keys not configured, web push disabled")
	}

	handler := api.NewHandler(appStore, webpushOptions, dispatcher, zlog)
	router := api.NewRouter(ctx, &cfg.Server, handler, zlog)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		zlog.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	zlog.Info("shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("HTTP server Shutdown", zap.Error(err))
	}

	if sqlDB, err := gormDB.DB(); err == nil {
		sqlDB.Close()
	}
	zlog.Info("server gracefully stopped")
}
