package admin_api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platform-finance-ledger/internal/admin_api/handler"
	"github.com/platform-finance-ledger/internal/admin_api/middleware"
	"github.com/platform-finance-ledger/internal/config"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	cfg *config.Config,
	shippingHandler *handler.ShippingHandler,
	commissionHandler *handler.CommissionHandler,
	earningHandler *handler.EarningHandler,
	financeHandler *handler.FinanceHandler,
	webhookHandler *handler.WebhookHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// Every endpoint under /api/v1 is a finance admin surface.
	v1 := r.Group("/api/v1")
	v1.Use(middleware.RequireFinanceAdmin(logger, &cfg.Auth))
	{
		shipping := v1.Group("/shipping")
		{
			shipping.POST("/invoices", shippingHandler.Ingest)
			shipping.GET("/invoices", shippingHandler.ListInvoices)
			shipping.GET("/invoices/:id", shippingHandler.GetInvoice)
			shipping.GET("/lines", shippingHandler.ListLines)
			shipping.POST("/lines/:id/match", shippingHandler.MatchLine)
			shipping.POST("/lines/:id/dispute", shippingHandler.DisputeLine)
			shipping.POST("/lines/:id/chargeback", shippingHandler.PostChargeback)
		}

		plans := v1.Group("/commission-plans")
		{
			plans.POST("", commissionHandler.Create)
			plans.GET("", commissionHandler.List)
			plans.POST("/:id/activate", commissionHandler.Activate)
			plans.GET("/resolve/:companyId", commissionHandler.Resolve)
		}

		earnings := v1.Group("/earnings")
		{
			earnings.GET("/:id", earningHandler.Get)
			earnings.POST("/:id/release-override", earningHandler.Override)
			earnings.POST("/:id/release", earningHandler.Release)
		}

		finance := v1.Group("/finance")
		{
			finance.GET("/overview", financeHandler.Overview)
			finance.GET("/ledger-entries", financeHandler.LedgerEntries)
			finance.GET("/audit-logs", financeHandler.AuditLogs)
		}
	}

	// Carrier-facing webhook surface. Payloads are queued for the settlement
	// worker rather than ingested inline.
	r.POST("/webhooks/carrier-invoices", webhookHandler.CarrierInvoice)

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
