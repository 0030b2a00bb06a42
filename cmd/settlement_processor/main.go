package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sportsbook-betting-core/internal/betbook"
	"github.com/sportsbook-betting-core/internal/config"
	"github.com/sportsbook-betting-core/internal/data/mongo"
	"github.com/sportsbook-betting-core/internal/data/postgres"
	"github.com/sportsbook-betting-core/internal/logger"
	"github.com/sportsbook-betting-core/internal/oracle"
	"github.com/sportsbook-betting-core/internal/platform/messaging/consumers"
	"github.com/sportsbook-betting-core/internal/platform/messaging/producers"
	"github.com/sportsbook-betting-core/internal/platform/persistence"
	"github.com/sportsbook-betting-core/internal/processor"
	"github.com/sportsbook-betting-core/internal/processor/outbox_poller"
	"github.com/sportsbook-betting-core/internal/settlementengine"
	"github.com/sportsbook-betting-core/internal/walletledger"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("settlement_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Settlement Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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

	// Initialize repositories
	walletRepo := postgres.NewWalletRepository(log, postgresDB)
	lockRepo := postgres.NewFundLockRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	betRepo := postgres.NewBetRepository(log, postgresDB)
	marketRepo := postgres.NewMarketRepository(log, postgresDB)
	transactionRepo := mongo.NewTransactionRepository(log, mongoDB.Database())
	settlementRepo := mongo.NewSettlementRepository(log, mongoDB.Database())

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize Kafka DLQ producer
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	eventProducer, err := producers.NewEventMessageProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize event Kafka producer", "error", err)
		os.Exit(1)
	}

	// Build the settlement engine and its collaborators. Settlement pays out
	// through the same ledger and bet book the gateway uses.
	oddsOracle := oracle.NewRedisOracle(log, redisClient, marketRepo)

	ledger := walletledger.NewService(log, postgresDB, walletRepo, lockRepo, transactionRepo, outboxRepo, eventProducer, cfg.Betting.Currency)

	limits, err := betbook.LimitsFromConfig(&cfg.Betting)
	if err != nil {
		log.Error("Invalid betting limits configuration", "error", err)
		os.Exit(1)
	}
	book := betbook.NewService(log, postgresDB, betRepo, marketRepo, oddsOracle, ledger, eventProducer, limits)

	engine := settlementengine.New(log, marketRepo, betRepo, book, settlementRepo, eventProducer)

	// Wrap the engine dispatch in a bounded worker pool.
	baseService := processor.NewProcessingService(log, engine)
	poolService, err := processor.NewWorkerPoolService(log, baseService, cfg.WorkerPool.Size)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	// Initialize settlement request handler
	requestHandler := processor.NewSettlementRequestHandler(log, poolService, dlqProducer)

	// Initialize outbox poller shipping wallet audit records to MongoDB
	auditPublisher := outbox_poller.NewAuditPublisher(log, outboxRepo, transactionRepo)
	poller := outbox_poller.NewPoller(&cfg.Outbox, outboxRepo, auditPublisher, log)

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.SettlementTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.SettlementTopic, cfg.Kafka.ConsumerGroup, requestHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Start outbox poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Outbox Poller",
			"interval", cfg.Outbox.PollingInterval.String(),
			"batch_size", cfg.Outbox.BatchSize,
		)
		poller.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Shutdown the worker pool
	poolService.Shutdown()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close Kafka producers and consumer
	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing event Kafka producer", "error", err)
	}

	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	if err = redisClient.Close(); err != nil {
		log.Error("Error closing Redis client", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Settlement Processor shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Settlement Processor shutdown completed with errors")
	} else {
		log.Info("Settlement Processor shutdown completed successfully")
	}
}
