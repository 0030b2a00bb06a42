package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sportsbook-betting-core/internal/betbook"
	"github.com/sportsbook-betting-core/internal/config"
	"github.com/sportsbook-betting-core/internal/data/mongo"
	"github.com/sportsbook-betting-core/internal/data/postgres"
	"github.com/sportsbook-betting-core/internal/gateway"
	"github.com/sportsbook-betting-core/internal/logger"
	"github.com/sportsbook-betting-core/internal/oracle"
	"github.com/sportsbook-betting-core/internal/platform/messaging/producers"
	"github.com/sportsbook-betting-core/internal/platform/persistence"
	"github.com/sportsbook-betting-core/internal/settlementengine"
	"github.com/sportsbook-betting-core/internal/walletledger"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	redisClient, err := persistence.NewRedisClient(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis odds cache", "error", err)
		os.Exit(1)
	}

	// Kafka producers: settlement requests out of the gateway, domain events
	// out of the core services.
	settlementProducer, err := producers.NewSettlementReqMessageProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize settlement request Kafka producer", "error", err)
		os.Exit(1)
	}

	eventProducer, err := producers.NewEventMessageProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize event Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	walletRepo := postgres.NewWalletRepository(log, postgresDB)
	lockRepo := postgres.NewFundLockRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	betRepo := postgres.NewBetRepository(log, postgresDB)
	marketRepo := postgres.NewMarketRepository(log, postgresDB)
	transactionRepo := mongo.NewTransactionRepository(log, mongoDB.Database())
	settlementRepo := mongo.NewSettlementRepository(log, mongoDB.Database())

	// Initialize services
	oddsOracle := oracle.NewRedisOracle(log, redisClient, marketRepo)

	ledger := walletledger.NewService(log, postgresDB, walletRepo, lockRepo, transactionRepo, outboxRepo, eventProducer, cfg.Betting.Currency)

	limits, err := betbook.LimitsFromConfig(&cfg.Betting)
	if err != nil {
		log.Error("Invalid betting limits configuration", "error", err)
		os.Exit(1)
	}
	book := betbook.NewService(log, postgresDB, betRepo, marketRepo, oddsOracle, ledger, eventProducer, limits)

	engine := settlementengine.New(log, marketRepo, betRepo, book, settlementRepo, eventProducer)

	// Initialize REST server
	server := gateway.NewServer(log, cfg, ledger, book, engine, settlementProducer)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first so in-flight requests drain before their
	// backing stores go away.
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = settlementProducer.Close(); err != nil {
		log.Error("Error closing settlement request Kafka producer", "error", err)
	}

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing event Kafka producer", "error", err)
	}

	if err = redisClient.Close(); err != nil {
		log.Error("Error closing Redis client", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
