package handler

import (
	"encoding/json"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/platform-finance-ledger/internal/platform/messaging/producers"
)

// WebhookHandler receives carrier invoice webhooks and hands them to the
// settlement worker over Kafka. Carriers retry webhooks aggressively, so the
// endpoint only validates the natural key and acknowledges; the worker's
// idempotency guard absorbs the duplicates.
type WebhookHandler struct {
	invoiceProducer producers.MessagePublisher
	logger          *slog.Logger
}

func NewWebhookHandler(logger *slog.Logger, invoiceProducer producers.MessagePublisher) *WebhookHandler {
	return &WebhookHandler{
		invoiceProducer: invoiceProducer,
		logger:          logger,
	}
}

// CarrierInvoice accepts one carrier invoice payload and enqueues it
func (h *WebhookHandler) CarrierInvoice(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		RespondBadRequest(c, "Failed to read request body")
		return
	}

	var req IngestInvoiceRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		h.logger.Error("Invalid carrier webhook payload", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.CarrierID == "" || req.InvoiceNo == "" {
		RespondBadRequest(c, "carrier_id and invoice_no are required")
		return
	}

	naturalKey := req.CarrierID + ":" + req.InvoiceNo
	if err := h.invoiceProducer.Publish(c.Request.Context(), naturalKey, json.RawMessage(raw)); err != nil {
		h.logger.Error("Failed to enqueue carrier invoice",
			"carrier_id", req.CarrierID,
			"invoice_no", req.InvoiceNo,
			"error", err,
		)
		RespondInternalError(c)
		return
	}

	h.logger.Info("Enqueued carrier invoice webhook",
		"carrier_id", req.CarrierID,
		"invoice_no", req.InvoiceNo,
	)
	RespondAccepted(c, gin.H{
		"carrier_id": req.CarrierID,
		"invoice_no": req.InvoiceNo,
		"status":     "QUEUED",
	})
}
