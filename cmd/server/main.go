package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"suratadmin/internal/logging"
	"suratadmin/internal/server/api"
	"suratadmin/internal/server/config"
	"suratadmin/internal/server/metrics"
	"suratadmin/internal/server/notify"
	"suratadmin/internal/server/service"
	"suratadmin/internal/server/session"
	"suratadmin/internal/server/storage"
)

func main() {
	// Load config
	cfg := config.Load()

	// Structured logging
	logger, err := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Path:       cfg.LogPath,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	logger.Info("configuration loaded",
		zap.String("port", cfg.Port),
		zap.String("store_base_url", cfg.StoreBaseURL),
		zap.Duration("console_idle", cfg.ConsoleIdle),
		zap.String("stats_locale", cfg.StatsLocale),
	)

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET must be set")
	}
	monthName, err := service.MonthNames(cfg.StatsLocale)
	if err != nil {
		logger.Fatal("invalid stats locale", zap.Error(err))
	}

	ctx := context.Background()

	// Backing store
	store := storage.NewHTTPStore(storage.Config{
		BaseURL: cfg.StoreBaseURL,
		Timeout: cfg.StoreTimeout,
	})

	// Notification inbox
	var inbox notify.Inbox
	if cfg.RedisAddr != "" {
		client, err := notify.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		defer client.Close()
		inbox = notify.NewRedisInbox(client, cfg.NotificationTTL, logger)
		logger.Info("notifications stored in redis", zap.String("addr", cfg.RedisAddr))
	} else {
		inbox = notify.NewMemoryInbox(cfg.NotificationTTL)
		logger.Info("notifications stored in memory")
	}

	// Consoles
	j := session.NewJWT(cfg.JWTSecret)
	registry := session.NewRegistry(func(p *service.Principal) *service.Console {
		consoleLogger := logger.With(zap.String("user_id", p.ID))
		return service.NewConsole(service.Options{
			Store:   store,
			Session: j.Provider(p.Token),
			Notifier: notify.Tee{
				notify.NewSink(inbox, p.ID, consoleLogger),
				notify.LogSink{Logger: consoleLogger},
			},
			Recorder:     metrics.Workflows{},
			Logger:       consoleLogger,
			MonthName:    monthName,
			TrackTimeout: cfg.TrackTimeout,
		})
	}, logger)

	// Start sweeper
	pruner, _ := inbox.(notify.Pruner)
	sweepCtx, sweepCancel := context.WithCancel(ctx)
	sweeper := session.NewSweeper(registry, pruner, cfg.CleanupInterval, cfg.ConsoleIdle, logger)
	sweeper.Start(sweepCtx)

	// Setup HTTP router
	handler := api.NewHandler(registry, inbox, logger)
	e := api.SetupRouter(handler, cfg, j, logger)

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		logger.Info("starting server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutting down", zap.String("signal", sig.String()))

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// Stop sweeper, then drop every open console
	sweepCancel()
	sweeper.Wait()
	registry.CloseAll()

	logger.Info("server exited cleanly")
}
