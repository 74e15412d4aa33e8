// Package admin_api serves the finance admin HTTP surface: shipping
// reconciliation, commission plan management, earning release, and the
// platform ledger reports.
package admin_api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platform-finance-ledger/internal/admin_api/handler"
	"github.com/platform-finance-ledger/internal/config"
	"github.com/platform-finance-ledger/internal/finance/auditsvc"
	"github.com/platform-finance-ledger/internal/finance/commissionsvc"
	"github.com/platform-finance-ledger/internal/finance/earningsvc"
	"github.com/platform-finance-ledger/internal/finance/overviewsvc"
	"github.com/platform-finance-ledger/internal/finance/shippingsvc"
	"github.com/platform-finance-ledger/internal/platform/messaging/producers"
)

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger     *slog.Logger // For structured logging
	httpServer *http.Server // Underlying HTTP server
	httpRouter *gin.Engine  // Gin router instance
}

// NewServer creates and configures a new HTTP server with the given services
func NewServer(
	log *slog.Logger,
	cfg *config.Config,
	shippingService shippingsvc.Service,
	commissionService commissionsvc.Service,
	earningService earningsvc.Service,
	overviewService overviewsvc.Service,
	auditRecorder *auditsvc.Recorder,
	invoiceProducer producers.MessagePublisher,
) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()

	shippingHandler := handler.NewShippingHandler(log, shippingService)
	commissionHandler := handler.NewCommissionHandler(log, commissionService)
	earningHandler := handler.NewEarningHandler(log, earningService)
	financeHandler := handler.NewFinanceHandler(log, overviewService, auditRecorder)
	webhookHandler := handler.NewWebhookHandler(log, invoiceProducer)

	setupRouter(log, httpRouter, cfg, shippingHandler, commissionHandler, earningHandler, financeHandler, webhookHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
	}
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server with a timeout
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.httpServer.WriteTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}

	return nil
}
