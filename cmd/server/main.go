package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/inkwell/internal/cache"
	"github.com/inkwell/internal/config"
	"github.com/inkwell/internal/db"
	"github.com/inkwell/internal/handler"
	"github.com/inkwell/internal/logger"
	"github.com/inkwell/internal/router"
	"github.com/inkwell/internal/service"
	"github.com/inkwell/internal/storage"
	"github.com/inkwell/internal/telemetry"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	if err := logger.Init(cfg.LogLevel, cfg.GinMode); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sentryEnabled, err := telemetry.InitSentry(cfg.SentryDSN, cfg.Environment)
	if err != nil {
		logger.Warn("sentry disabled", zap.Error(err))
	}
	if sentryEnabled {
		defer telemetry.FlushSentry()
	}

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
		cfg.OTLPEndpoint = ""
		shutdownTracing = func(context.Context) error { return nil }
	}

	// 初始化数据库
	if err := db.Init(cfg.DatabaseDriver, cfg.DatabaseDSN); err != nil {
		logger.L().Fatal("failed to initialize database", zap.Error(err))
	}
	if err := db.EnsureUser(db.DB, cfg.SuperRootUserName, cfg.SuperRootPassword, db.RoleAdmin); err != nil {
		logger.L().Fatal("failed to ensure bootstrap admin", zap.Error(err))
	}

	var renderCache service.RenderCache
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("render cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			renderCache = cache.NewRenderCache(client, cfg.RenderCacheTTL)
		}
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.L().Fatal("failed to initialize upload storage", zap.Error(err))
	}

	api := handler.NewAPI(db.DB, handler.Options{
		RenderCache:    renderCache,
		Store:          store,
		JWTSecret:      cfg.JWTSecret,
		TokenTTL:       cfg.TokenTTL,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router.SetupRouter(cfg, api, sentryEnabled),
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal("failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown failed", zap.Error(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func openStore(ctx context.Context, cfg config.AppConfig) (storage.Store, error) {
	if cfg.UploadBackend == config.UploadBackendMinIO {
		return storage.NewMinioStore(ctx, cfg.MinIO)
	}
	return storage.NewLocalStore(cfg.UploadDir, cfg.UploadURLPath)
}
