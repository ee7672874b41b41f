package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/roomsync/internal/adapter/handler"
	"github.com/rl1809/roomsync/internal/adapter/storage"
	"github.com/rl1809/roomsync/internal/config"
	"github.com/rl1809/roomsync/internal/core/service"
	"github.com/rl1809/roomsync/internal/port"
)

// store is what the services need from a backend, plus a liveness check.
type store interface {
	port.ListingRepository
	port.IdentityRepository
	handler.Pinger
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, closeBackend, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to open store")
	}

	cache, closeCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to open idempotency cache")
	}

	breaker := storage.NewBreakerAdapter(backend, backend, storage.BreakerSettings{
		Name:                cfg.Store,
		MaxRequests:         cfg.Breaker.MaxRequests,
		Interval:            cfg.Breaker.Interval,
		Timeout:             cfg.Breaker.Timeout,
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
		OnStateChange: func(name, from, to string) {
			logger.WithFields(logrus.Fields{"breaker": name, "from": from, "to": to}).Warn("circuit breaker changed state")
		},
	})

	// Initialize services
	identityService := service.NewIdentityService(breaker)
	listingService := service.NewListingService(breaker, breaker, cache)

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryLogger(logger)))
	handler.RegisterListingServiceServer(grpcServer, handler.NewGRPCHandler(identityService, listingService, logger))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(handler.ServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.WithError(err).Fatal("failed to listen")
	}

	go func() {
		logger.Infof("gRPC server listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.WithError(err).Error("gRPC server error")
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(identityService, listingService, logger)
	httpHandler.AddReadinessCheck("store", backend)
	if pinger, ok := cache.(handler.Pinger); ok {
		httpHandler.AddReadinessCheck("cache", pinger)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Wrap(httpHandler.Router(), logger, cfg.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Infof("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown")
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	closeCache()
	closeBackend()
	logger.Info("connections closed")
}

func openStore(ctx context.Context, cfg config.Config, logger *logrus.Logger) (store, func(), error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return storage.NewMemoryAdapter(), func() {}, nil
	}

	db, err := storage.OpenMySQL(ctx, cfg.MySQL.DSN, storage.MySQLOptions{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("connected to mysql")

	adapter := storage.NewMySQLAdapter(db)
	if err := adapter.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return adapter, func() { db.Close() }, nil
}

func openCache(ctx context.Context, cfg config.Config, logger *logrus.Logger) (port.CacheRepository, func(), error) {
	if cfg.Redis.Addr == "" {
		logger.Warn("REDIS_ADDR not set, idempotency keys are kept in process")
		return storage.NewMemoryCache(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		PoolSize: cfg.Redis.PoolSize,
	})
	adapter := storage.NewRedisAdapter(rdb)
	if err := adapter.Ping(ctx); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("connected to redis")

	return adapter, func() { rdb.Close() }, nil
}
