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

	"github.com/avik-b/pulseboard/internal/api"
	"github.com/avik-b/pulseboard/internal/bus"
	"github.com/avik-b/pulseboard/internal/cache"
	"github.com/avik-b/pulseboard/internal/config"
	"github.com/avik-b/pulseboard/internal/db"
	"github.com/avik-b/pulseboard/internal/observ"
	"github.com/avik-b/pulseboard/internal/repository/postgres"
	"github.com/avik-b/pulseboard/internal/service"
	"github.com/avik-b/pulseboard/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server exited: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close()

	// Redis is optional: without it the dashboard cache degrades to an
	// in-process map, everything else keeps working.
	var dashboardCache cache.Cache
	if redisCache, err := cache.NewRedis(ctx, cfg.RedisURL, logger); err != nil {
		logger.Warn("redis unavailable, using in-process cache", zap.Error(err))
		dashboardCache = cache.NewMemory()
	} else {
		dashboardCache = redisCache
	}
	defer dashboardCache.Close() //nolint:errcheck

	eventBus := bus.New(logger)
	defer eventBus.Close() //nolint:errcheck

	pool := database.Pool()
	userService := service.NewUserService(postgres.NewUserStore(pool), logger)
	analyticsService := service.NewAnalyticsService(
		postgres.NewAnalyticsStore(pool), dashboardCache, cfg.DashboardCacheTTL, eventBus, logger)
	chatService := service.NewChatService(postgres.NewChatStore(pool), eventBus, logger)
	dashboardService := service.NewDashboardService(postgres.NewDashboardStore(pool), logger)

	hub := ws.NewHub(logger)
	gateway := ws.NewGateway(hub, chatService, analyticsService, cfg.JWTSecret, cfg.AssistantDelay, logger)
	if err := gateway.StartForwarders(ctx, eventBus); err != nil {
		return fmt.Errorf("start event forwarders: %w", err)
	}

	router := api.Router(cfg, database, userService, analyticsService, chatService, dashboardService, gateway, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	gateway.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
