// Package main provides the API server entry point for the yield ledger service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yield-ledger/internal/api"
	"github.com/yield-ledger/internal/config"
	"github.com/yield-ledger/internal/logging"
	"github.com/yield-ledger/internal/service"
	"github.com/yield-ledger/internal/storage"
	"github.com/yield-ledger/internal/token"
)

func main() {
	log.Println("Yield ledger server starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Initialize repositories
	snapshotRepo := storage.NewSnapshotRepository(postgres)
	distRepo := storage.NewDistributionRepository(postgres)
	reserveRepo := storage.NewReserveRepository(postgres)
	stakeRepo := storage.NewStakeRepository(postgres)
	eventRepo := storage.NewEventRepository(clickhouse)

	// Initialize cache service
	cacheService := storage.NewCacheService(redis, cfg.Cache.ClaimableTTL)

	// Initialize the in-process token ledger. Development runs seed it
	// from LEDGER_INITIAL_BALANCES; a production deployment would bind an
	// on-chain token here instead.
	tokenLedger := token.NewLedger()
	for holder, amount := range cfg.Ledger.InitialBalances {
		tokenLedger.Mint(holder, amount)
	}

	// Initialize services
	logger.Info("Initializing services...")

	yieldService := service.NewYieldService(service.YieldServiceDeps{
		Token:        tokenLedger.Account(cfg.Ledger.VaultAddress),
		Admin:        cfg.Ledger.AdminAddress,
		SnapshotRepo: snapshotRepo,
		DistRepo:     distRepo,
		ReserveRepo:  reserveRepo,
		Events:       eventRepo,
		Cache:        cacheService,
		Logger:       logger,
	})

	stakeService := service.NewStakeService(service.StakeServiceDeps{
		Token:      tokenLedger.Account(cfg.Ledger.VaultAddress),
		Admin:      cfg.Ledger.AdminAddress,
		Vault:      cfg.Ledger.VaultAddress,
		LockPeriod: cfg.Ledger.LockPeriod,
		APY:        cfg.Ledger.APYBasisPoints,
		StakeRepo:  stakeRepo,
		Events:     eventRepo,
		Logger:     logger,
	})

	// Rebuild in-memory engine state from the persistence mirror
	restoreCtx, restoreCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer restoreCancel()

	if err := yieldService.Restore(restoreCtx); err != nil {
		logger.WithError(err).Fatal("Failed to restore yield state")
	}
	if err := stakeService.Restore(restoreCtx); err != nil {
		logger.WithError(err).Fatal("Failed to restore stake state")
	}

	logger.Info("Services initialized")

	// Create server configuration
	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	}

	server := api.NewServer(serverConfig, yieldService, stakeService)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
