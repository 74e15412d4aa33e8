package handler

import (
	"encoding/json"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/platform-finance-ledger/internal/admin_api/middleware"
	"github.com/platform-finance-ledger/internal/domain/shipping"
	"github.com/platform-finance-ledger/internal/finance/shippingsvc"
)

// ShippingHandler handles HTTP requests for shipping reconciliation
type ShippingHandler struct {
	shippingService shippingsvc.Service
	logger          *slog.Logger
}

// NewShippingHandler creates a new shipping handler
func NewShippingHandler(logger *slog.Logger, shippingService shippingsvc.Service) *ShippingHandler {
	return &ShippingHandler{
		shippingService: shippingService,
		logger:          logger,
	}
}

// Ingest accepts a carrier invoice webhook payload. Redelivery of an already
// ingested invoice returns the stored invoice with 200.
func (h *ShippingHandler) Ingest(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		RespondBadRequest(c, "Failed to read request body")
		return
	}

	var req IngestInvoiceRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		h.logger.Error("Invalid invoice payload", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	input := &shippingsvc.IngestInput{
		CarrierID:   req.CarrierID,
		InvoiceNo:   req.InvoiceNo,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		Currency:    req.Currency,
		TotalAmount: req.TotalAmount,
		RawPayload:  raw,
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, shippingsvc.IngestLine{
			TrackingNo:   l.TrackingNo,
			ChargeAmount: l.ChargeAmount,
			TaxAmount:    l.TaxAmount,
			ServiceLevel: l.ServiceLevel,
		})
	}

	if input.CarrierID == "" || input.InvoiceNo == "" || len(input.Lines) == 0 {
		RespondBadRequest(c, "carrier_id, invoice_no and at least one line are required")
		return
	}

	inv, err := h.shippingService.IngestInvoice(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	RespondCreated(c, inv)
}

// ListInvoices returns invoices newest first, optionally filtered by status
func (h *ShippingHandler) ListInvoices(c *gin.Context) {
	var params ListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	status := shipping.InvoiceStatus(c.Query("status"))
	page, err := h.shippingService.ListInvoices(c.Request.Context(), status, params.Cursor, params.Take)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	RespondOK(c, page)
}

// GetInvoice returns one invoice with its redacted raw carrier payload
func (h *ShippingHandler) GetInvoice(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid invoice ID")
		return
	}

	detail, err := h.shippingService.GetInvoice(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	RespondOK(c, InvoiceDetailResponse{
		Invoice:    detail.Invoice,
		RawPayload: detail.RawPayload,
	})
}

// ListLines returns the reconciliation work queue for one match status
func (h *ShippingHandler) ListLines(c *gin.Context) {
	var params ListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	status := shipping.MatchStatus(c.DefaultQuery("status", string(shipping.LineUnmatched)))
	page, err := h.shippingService.ListLinesQueue(c.Request.Context(), status, params.Cursor, params.Take)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	RespondOK(c, page)
}

// MatchLine matches a line to a shipment by admin override
func (h *ShippingHandler) MatchLine(c *gin.Context) {
	lineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid line ID")
		return
	}

	var req MatchLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	shipmentID, err := uuid.Parse(req.ShipmentID)
	if err != nil {
		RespondBadRequest(c, "Invalid shipment ID")
		return
	}

	line, err := h.shippingService.ManualMatchLine(c.Request.Context(), middleware.GetAdminID(c), lineID, shipmentID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	RespondOK(c, line)
}

// DisputeLine marks a line disputed with an audited reason
func (h *ShippingHandler) DisputeLine(c *gin.Context) {
	lineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid line ID")
		return
	}

	var req DisputeLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	line, err := h.shippingService.DisputeLine(c.Request.Context(), middleware.GetAdminID(c), lineID, req.ReasonCode, req.Note)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	RespondOK(c, line)
}

// PostChargeback posts the chargeback entry set for a matched line
func (h *ShippingHandler) PostChargeback(c *gin.Context) {
	lineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid line ID")
		return
	}

	group, err := h.shippingService.PostChargeback(c.Request.Context(), lineID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	RespondCreated(c, group)
}
