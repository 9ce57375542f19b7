package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/craftly/cart-engine/internal/adapter/handler"
	"github.com/craftly/cart-engine/internal/adapter/remote"
	"github.com/craftly/cart-engine/internal/adapter/storage"
	"github.com/craftly/cart-engine/internal/core/service"
	"github.com/craftly/cart-engine/internal/port"
	"github.com/craftly/cart-engine/pkg/config"
	"github.com/craftly/cart-engine/pkg/logger"
	"github.com/craftly/cart-engine/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		zlog.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		zlog.Fatal("failed to ping mysql", zap.Error(err))
	}
	zlog.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Fatal("failed to connect redis", zap.Error(err))
	}
	zlog.Info("connected to redis")

	// Initialize adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	var remoteCart port.RemoteCartRepository = mysqlAdapter
	if cfg.Remote.Mode == "http" {
		remoteCart = remote.NewClient(cfg.Remote.BaseURL)
		zlog.Info("using http remote cart", zap.String("base_url", cfg.Remote.BaseURL))
	}

	retryOpts := retry.Options{
		MaxAttempts: cfg.Sync.MaxAttempts,
		BaseDelay:   cfg.Sync.BaseDelay,
		MaxDelay:    cfg.Sync.MaxDelay,
		OnRetry: func(attempt int, err error) {
			zlog.Debug("retrying remote cart write", zap.Int("attempt", attempt), zap.Error(err))
		},
	}

	manager := service.NewCartManager(remoteCart, mysqlAdapter, redisAdapter, redisAdapter, zlog, retryOpts)

	// Connectivity prober: the server-side analog of the browser
	// online/offline signal, drives queue replay on reconnect.
	go probeLoop(ctx, remoteCart, manager, zlog, cfg.Sync.ProbeInterval)

	// Initialize gRPC health server
	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		zlog.Fatal("failed to listen", zap.String("addr", cfg.GRPC.Addr), zap.Error(err))
	}
	go func() {
		zlog.Info("gRPC health server listening", zap.String("addr", cfg.GRPC.Addr))
		if err := grpcServer.Serve(lis); err != nil {
			zlog.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(
		manager,
		service.NewShippingCalculator(nil),
		service.NewCurrencyConverter(),
		zlog,
	)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		zlog.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			zlog.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down")
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	zlog.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	zlog.Info("gRPC server stopped")

	manager.Close()
	cancel()
	rdb.Close()
	db.Close()
	zlog.Info("connections closed")
}

func probeLoop(ctx context.Context, remoteCart port.RemoteCartRepository, manager *service.CartManager, zlog *zap.Logger, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	probe := func() {
		if err := remoteCart.Ping(ctx); err != nil {
			zlog.Warn("remote cart unreachable", zap.Error(err))
			manager.SetOnline(false)
			return
		}
		manager.SetOnline(true)
	}

	probe()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}
