package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "github.com/wekeepgrowing/semo-billing-webhooks/internal/adapter/handler/http"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/config"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/repository"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/credentials"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/crypto"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/database"
	grpcServer "github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/grpc"
	httpServer "github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/http"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/provider"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/worker"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/usecase"
	"github.com/wekeepgrowing/semo-billing-webhooks/pkg/logger"
	"go.uber.org/zap"
)

const shutdownTimeout = 20 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(cfg.Log, cfg.Service.Name)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	repos := database.NewRepositories(db, zapLogger)

	// Create context for background loops
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := newCredentialStore(cfg, repos.Credential, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to configure credentials", zap.Error(err))
	}
	if err := store.Load(ctx); err != nil {
		zapLogger.Fatal("Failed to load provider credentials", zap.Error(err))
	}
	go store.Run(ctx, 0)

	// Pipeline
	audit := usecase.NewAuditLogger(repos.WebhookLog, zapLogger)
	dedup, err := usecase.NewDedupGuard(repos.Subscription, cfg.Pipeline.DedupCache, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create dedup guard", zap.Error(err))
	}
	processor := usecase.NewProcessor(
		audit,
		provider.NewNormalizer(cfg.Plans.Aliases, zapLogger),
		dedup,
		usecase.NewReconciler(repos.Subscription, zapLogger),
		zapLogger,
	).WithSignaturePolicy(cfg.Providers)

	pool := worker.NewPool(cfg.Pipeline.Workers, cfg.Pipeline.QueueSize, cfg.Pipeline.ProcessTimeout, zapLogger)
	pool.Start()

	dispatcher := usecase.NewDispatcher(pool, processor, repos.WebhookLog, usecase.SweepConfig{
		StaleAfter: cfg.Pipeline.StaleAfter,
		Interval:   cfg.Pipeline.SweepInterval,
		Batch:      cfg.Pipeline.SweepBatch,
	}, zapLogger)
	go dispatcher.RunSweeper(ctx)

	ingest := usecase.NewIngestService(audit, cfg.Providers, store, dispatcher, zapLogger)
	lookups := usecase.NewLookupService(provider.NewFactory(cfg.Providers, store, zapLogger), audit, processor, zapLogger)
	diagnostics := usecase.NewDiagnosticsService(repos.WebhookLog, repos.Subscription, zapLogger)

	// Initialize servers
	grpcSrv := grpcServer.NewServer(cfg.Server.GRPC, zapLogger)
	httpSrv := httpServer.NewServer(cfg.Service.Name, cfg.Server.HTTP, cfg.JWT, zapLogger, handlers.MainRoutes(
		handlers.NewWebhookHandler(ingest, cfg.Pipeline.MaxBodyBytes, zapLogger),
		handlers.NewDiagnosticsHandler(diagnostics, zapLogger),
		handlers.NewAdminHandler(audit, ingest, lookups, store, zapLogger),
	))

	// Start servers
	go func() {
		if err := grpcSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("Shutting down servers...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// gRPC health goes NOT_SERVING first so the relay holds its queue.
	if err := grpcSrv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown gRPC server", zap.Error(err))
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	// Stop the sweeper, then let workers finish what they hold. Records
	// still queued are picked up by the sweeper after restart.
	cancel()
	pool.Stop()

	zapLogger.Info("Servers shut down successfully")
}

// newCredentialStore picks the credential source. Inline provider config is
// always the base layer.
func newCredentialStore(cfg *config.Config, repo repository.CredentialRepository, log *zap.Logger) (*credentials.Store, error) {
	base := credentials.NewConfigSource(cfg.Providers)
	opts := []credentials.Option{credentials.WithRefreshInterval(cfg.Credentials.RefreshInterval)}

	switch cfg.Credentials.Source {
	case "file":
		return credentials.NewStore(credentials.NewFileSource(cfg.Credentials.FilePath), log,
			append(opts, credentials.WithBase(base))...), nil
	case "database":
		var cipher crypto.SecretCipher
		if cfg.Credentials.EncryptionKey != "" {
			aes, err := crypto.NewAESGCMCipher(cfg.Credentials.EncryptionKey)
			if err != nil {
				return nil, err
			}
			cipher = aes
		}
		return credentials.NewStore(credentials.NewDatabaseSource(repo, cipher), log,
			append(opts, credentials.WithBase(base))...), nil
	default:
		return credentials.NewStore(base, log, opts...), nil
	}
}
