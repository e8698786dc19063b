package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/unifarm-balance-ledger/internal/auditor"
	"github.com/unifarm-balance-ledger/internal/balance"
	"github.com/unifarm-balance-ledger/internal/config"
	"github.com/unifarm-balance-ledger/internal/data/mongo"
	"github.com/unifarm-balance-ledger/internal/data/postgres"
	"github.com/unifarm-balance-ledger/internal/farming"
	"github.com/unifarm-balance-ledger/internal/logger"
	"github.com/unifarm-balance-ledger/internal/platform/messaging/consumers"
	"github.com/unifarm-balance-ledger/internal/platform/messaging/producers"
	"github.com/unifarm-balance-ledger/internal/platform/persistence"
	"github.com/unifarm-balance-ledger/internal/transaction_processor/consumer"
	"github.com/unifarm-balance-ledger/internal/transaction_processor/outbox_poller"
	"github.com/unifarm-balance-ledger/internal/transaction_processor/service"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("transaction_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Transaction Processor",
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

	// Initialize repositories
	walletRepo := postgres.NewWalletRepository(log, postgresDB)
	ledgerRepo := postgres.NewLedgerRepository(log, postgresDB)
	idemRepo := postgres.NewIdempotencyRepository(log, postgresDB)
	auditRepo := postgres.NewAuditRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	boostRepo := postgres.NewBoostRepository(log, postgresDB)
	historyRepo := mongo.NewHistoryRepository(log, mongoDB.Database())

	// The balance manager is the single writer for wallet snapshots
	manager := balance.NewManager(postgresDB.Pool(), walletRepo, ledgerRepo, idemRepo, auditRepo, outboxRepo, log)

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize Kafka DLQ producer
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer is nil when DLQTopic is not configured. Only assign the
	// interface when the producer exists so the handler's nil check holds.
	var dlqPublisher producers.DeadLetterPublisher
	if dlqProducer != nil {
		dlqPublisher = dlqProducer
	}

	// Initialize deposit processing behind the worker pool
	baseProcessing := service.NewProcessingService(manager, log)
	processingService, err := service.NewWorkerPoolProcessingService(
		baseProcessing,
		service.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		log,
	)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	// Initialize deposit event handler
	depositEventHandler := consumer.NewDepositEventHandler(
		log,
		processingService,
		dlqPublisher,
	)

	// Initialize outbox poller mirroring entries to MongoDB
	historyPublisher := outbox_poller.NewHistoryPublisher(
		outboxRepo,
		historyRepo,
		log,
	)
	poller := outbox_poller.NewPoller(
		&cfg.Outbox,
		outboxRepo,
		historyPublisher,
		log,
	)

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.DepositTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.DepositTopic, cfg.Kafka.ConsumerGroup, depositEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Start outbox poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	// Start farming scheduler when enabled
	if cfg.Farming.Enabled {
		scheduler, err := farming.NewScheduler(&cfg.Farming, manager, boostRepo, walletRepo, log)
		if err != nil {
			log.Error("Failed to initialize farming scheduler", "error", err)
			os.Exit(1)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.Start(appCtx)
		}()
	}

	// Start periodic audit runner when enabled
	if cfg.Audit.Enabled {
		auditEngine := auditor.NewAuditor(walletRepo, ledgerRepo, boostRepo, auditRepo, manager, log)
		runner := auditor.NewRunner(&cfg.Audit, auditEngine, walletRepo, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			runner.Start(appCtx)
		}()
	}

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
	log.Info("Shutting down worker pool", "running_workers", processingService.Running())
	processingService.Shutdown()

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

	// Close DLQ Kafka producer
	if dlqProducer != nil { // dlqProducer can be nil if DLQTopic was not configured
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	// Close Kafka consumer
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Transaction Processor shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Transaction Processor shutdown completed with errors")
	} else {
		log.Info("Transaction Processor shutdown completed successfully")
	}
}
