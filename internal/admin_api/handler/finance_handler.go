package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platform-finance-ledger/internal/domain/ledger"
	"github.com/platform-finance-ledger/internal/finance/auditsvc"
	"github.com/platform-finance-ledger/internal/finance/overviewsvc"
)

// FinanceHandler handles HTTP requests for platform finance reporting
type FinanceHandler struct {
	overviewService overviewsvc.Service
	auditRecorder   *auditsvc.Recorder
	logger          *slog.Logger
}

// NewFinanceHandler creates a new finance reporting handler
func NewFinanceHandler(logger *slog.Logger, overviewService overviewsvc.Service, auditRecorder *auditsvc.Recorder) *FinanceHandler {
	return &FinanceHandler{
		overviewService: overviewService,
		auditRecorder:   auditRecorder,
		logger:          logger,
	}
}

// Overview returns the platform revenue and exposure figures for a period.
// Defaults to the last 30 days.
func (h *FinanceHandler) Overview(c *gin.Context) {
	to := time.Now()
	from := to.AddDate(0, 0, -30)

	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			RespondBadRequest(c, "Invalid 'from' timestamp, expected RFC3339")
			return
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			RespondBadRequest(c, "Invalid 'to' timestamp, expected RFC3339")
			return
		}
		to = parsed
	}
	if to.Before(from) {
		RespondBadRequest(c, "'to' must not precede 'from'")
		return
	}

	overview, err := h.overviewService.GetOverview(c.Request.Context(), from, to)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	RespondOK(c, overview)
}

// LedgerEntries returns the platform tenant's ledger entries, optionally
// filtered by account type
func (h *FinanceHandler) LedgerEntries(c *gin.Context) {
	var params ListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	accountType := ledger.AccountType(c.Query("account"))
	page, err := h.overviewService.ListPlatformEntries(c.Request.Context(), accountType, params.Cursor, params.Take)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	RespondOK(c, page)
}

// AuditLogs returns the finance audit trail newest first
func (h *FinanceHandler) AuditLogs(c *gin.Context) {
	var params ListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	page, err := h.auditRecorder.List(c.Request.Context(), params.Cursor, params.Take)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	RespondOK(c, page)
}
