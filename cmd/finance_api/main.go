package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/platform-finance-ledger/internal/admin_api"
	"github.com/platform-finance-ledger/internal/config"
	"github.com/platform-finance-ledger/internal/data/mongo"
	"github.com/platform-finance-ledger/internal/data/postgres"
	"github.com/platform-finance-ledger/internal/finance/auditsvc"
	"github.com/platform-finance-ledger/internal/finance/commissionsvc"
	"github.com/platform-finance-ledger/internal/finance/earningsvc"
	"github.com/platform-finance-ledger/internal/finance/idempotency"
	"github.com/platform-finance-ledger/internal/finance/overviewsvc"
	"github.com/platform-finance-ledger/internal/finance/shippingsvc"
	"github.com/platform-finance-ledger/internal/logger"
	"github.com/platform-finance-ledger/internal/platform/messaging/producers"
	"github.com/platform-finance-ledger/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("finance_api")
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

	// Kafka producer for the carrier webhook surface (publishes to the invoice topic)
	invoiceProducer, err := producers.NewInvoiceReceivedProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize invoice Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	idempotencyRepo := postgres.NewIdempotencyRepository(log, postgresDB)
	shippingRepo := postgres.NewShippingRepository(log, postgresDB)
	ledgerRepo := postgres.NewLedgerRepository(log, postgresDB)
	earningRepo := postgres.NewEarningRepository(log, postgresDB)
	commissionRepo := postgres.NewCommissionRepository(log, postgresDB)
	auditRepo := postgres.NewAuditRepository(log, postgresDB)
	invoiceArchive := mongo.NewInvoiceArchive(log, mongoDB.Database())

	// Initialize services
	idemManager := idempotency.NewManager(log, postgresDB, idempotencyRepo)
	auditRecorder := auditsvc.NewRecorder(log, auditRepo)
	shippingService := shippingsvc.NewService(log, idemManager, shippingRepo, ledgerRepo, earningRepo, invoiceArchive, auditRecorder)
	commissionService := commissionsvc.NewService(log, idemManager, commissionRepo, auditRecorder)
	earningService := earningsvc.NewService(log, idemManager, earningRepo, ledgerRepo, auditRecorder)
	overviewService := overviewsvc.NewService(log, ledgerRepo)

	// Initialize REST server
	server := admin_api.NewServer(log, cfg, shippingService, commissionService, earningService, overviewService, auditRecorder, invoiceProducer)
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

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = invoiceProducer.Close(); err != nil {
		log.Error("Error closing invoice Kafka producer", "error", err)
	}

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
