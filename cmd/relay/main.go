// Command relay accepts provider webhooks on its own process and database,
// then forwards them to the billing service with retries.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "github.com/wekeepgrowing/semo-billing-webhooks/internal/adapter/handler/http"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/adapter/repository"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/config"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/database"
	grpcClient "github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/grpc"
	httpServer "github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/http"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/usecase"
	"github.com/wekeepgrowing/semo-billing-webhooks/pkg/logger"
	"github.com/wekeepgrowing/semo-billing-webhooks/pkg/messaging"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadRelay()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.NewZapLogger(cfg.Log, cfg.Service.Name)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	if err := database.MigrateRelay(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	var queue messaging.Queue
	switch cfg.Queue.Driver {
	case "redis":
		queue, err = messaging.NewRedisQueue(cfg.Queue.Redis.Addr, cfg.Queue.Redis.Password, cfg.Queue.Redis.DB, cfg.Queue.Redis.Key)
		if err != nil {
			zapLogger.Fatal("Failed to connect to redis", zap.Error(err))
		}
	default:
		queue = messaging.NewMemoryQueue(cfg.Queue.Size)
	}

	var health usecase.HealthChecker
	if cfg.Forward.HealthAddr != "" {
		checker, err := grpcClient.NewHealthChecker(cfg.Forward.HealthAddr, cfg.Forward.Timeout, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to create health checker", zap.Error(err))
		}
		defer checker.Close()
		health = checker
	}

	relay := usecase.NewRelayService(
		repository.NewRelayDeliveryRepository(db, zapLogger),
		queue,
		usecase.NewHTTPForwarder(cfg.Forward, health, zapLogger),
		zapLogger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := relay.Recover(ctx); err != nil {
		zapLogger.Error("Failed to requeue pending deliveries", zap.Error(err))
	}

	workersDone := make(chan struct{})
	go func() {
		relay.Run(ctx, cfg.Forward.Workers, cfg.Queue.PollTimeout)
		close(workersDone)
	}()

	httpSrv := httpServer.NewServer(cfg.Service.Name, cfg.HTTP, cfg.JWT, zapLogger, handlers.RelayRoutes(
		handlers.NewRelayHandler(relay, cfg.Forward.MaxBodyBytes, zapLogger),
	))
	go func() {
		if err := httpSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("Shutting down relay...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	// Deliveries still queued are requeued by Recover on the next start.
	cancel()
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		zapLogger.Warn("Relay workers did not stop in time")
	}
	if err := queue.Close(); err != nil {
		zapLogger.Error("Failed to close queue", zap.Error(err))
	}

	zapLogger.Info("Relay shut down successfully")
}
