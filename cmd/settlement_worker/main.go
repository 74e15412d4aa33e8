package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/platform-finance-ledger/internal/config"
	"github.com/platform-finance-ledger/internal/data/mongo"
	"github.com/platform-finance-ledger/internal/data/postgres"
	"github.com/platform-finance-ledger/internal/finance/auditsvc"
	"github.com/platform-finance-ledger/internal/finance/earningsvc"
	"github.com/platform-finance-ledger/internal/finance/idempotency"
	"github.com/platform-finance-ledger/internal/finance/shippingsvc"
	"github.com/platform-finance-ledger/internal/logger"
	"github.com/platform-finance-ledger/internal/platform/messaging/consumers"
	"github.com/platform-finance-ledger/internal/platform/messaging/producers"
	"github.com/platform-finance-ledger/internal/platform/persistence"
	"github.com/platform-finance-ledger/internal/settlement_worker/consumer"
	"github.com/platform-finance-ledger/internal/settlement_worker/release_poller"
	"github.com/platform-finance-ledger/internal/settlement_worker/service"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("settlement_worker")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Settlement Worker",
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
	idempotencyRepo := postgres.NewIdempotencyRepository(log, postgresDB)
	shippingRepo := postgres.NewShippingRepository(log, postgresDB)
	ledgerRepo := postgres.NewLedgerRepository(log, postgresDB)
	earningRepo := postgres.NewEarningRepository(log, postgresDB)
	auditRepo := postgres.NewAuditRepository(log, postgresDB)
	invoiceArchive := mongo.NewInvoiceArchive(log, mongoDB.Database())

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize Kafka DLQ producer
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer might be nil if DLQTopic is not configured. Handler should be nil-safe.

	// Initialize services
	idemManager := idempotency.NewManager(log, postgresDB, idempotencyRepo)
	auditRecorder := auditsvc.NewRecorder(log, auditRepo)
	shippingService := shippingsvc.NewService(log, idemManager, shippingRepo, ledgerRepo, earningRepo, invoiceArchive, auditRecorder)
	earningService := earningsvc.NewService(log, idemManager, earningRepo, ledgerRepo, auditRecorder)

	// Wrap ingestion in the worker pool
	ingestService, err := service.NewWorkerPoolIngestService(
		shippingService,
		service.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		log,
	)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	// Initialize invoice event handler
	invoiceEventHandler := consumer.NewInvoiceEventHandler(
		log,
		ingestService,
		dlqProducer,
	)

	// Initialize earnings release poller
	poller := release_poller.NewPoller(
		&cfg.Release,
		earningService,
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
			"topic", cfg.Kafka.InvoiceTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.InvoiceTopic, cfg.Kafka.ConsumerGroup, invoiceEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Start release poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Release Poller",
			"interval", cfg.Release.PollingInterval.String(),
			"batch_size", cfg.Release.BatchSize,
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
	log.Info("Shutting down worker pool", "running_workers", ingestService.Running())
	ingestService.Shutdown()

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
		log.Error("Settlement Worker shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Settlement Worker shutdown completed with errors")
	} else {
		log.Info("Settlement Worker shutdown completed successfully")
	}
}
