package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/platform-finance-ledger/internal/domain/idempotency"
	"github.com/platform-finance-ledger/internal/finance/shippingsvc"
	"github.com/platform-finance-ledger/internal/platform/messaging/producers"
	"github.com/platform-finance-ledger/internal/settlement_worker/service"
)

// InvoiceEventHandler handles incoming carrier invoice messages from Kafka
type InvoiceEventHandler struct {
	ingestService service.IngestService
	producer      producers.DeadLetterPublisher
	logger        *slog.Logger
}

// NewInvoiceEventHandler creates a new handler
func NewInvoiceEventHandler(
	logger *slog.Logger,
	ingestService service.IngestService,
	producer producers.DeadLetterPublisher,
) *InvoiceEventHandler {
	return &InvoiceEventHandler{
		ingestService: ingestService,
		producer:      producer,
		logger:        logger,
	}
}

// HandleMessage processes Kafka messages. Unparseable payloads go to the DLQ
// so the partition is not blocked; transient ingest failures return an error
// so the offset stays uncommitted and the message redelivers.
func (h *InvoiceEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var input shippingsvc.IngestInput
	if err := json.Unmarshal(value, &input); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal carrier invoice from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		// Send to DLQ if available
		if h.producer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
			} else {
				h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				// Message handled, commit offset
				return nil
			}
		}
		// Allow Kafka retries
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	if len(input.RawPayload) == 0 {
		input.RawPayload = value
	}

	h.logger.Info("Received carrier invoice for ingestion",
		"carrier_id", input.CarrierID,
		"invoice_no", input.InvoiceNo,
		"line_count", len(input.Lines),
	)

	inv, err := h.ingestService.IngestInvoice(ctx, &input)
	if err != nil {
		// A concurrent attempt holds the key; redelivery will find it settled.
		var alreadyRunning idempotency.AlreadyRunningError
		if errors.As(err, &alreadyRunning) {
			h.logger.Warn("Invoice ingestion already in progress, leaving offset uncommitted",
				"carrier_id", input.CarrierID,
				"invoice_no", input.InvoiceNo,
			)
			return err
		}

		h.logger.Error("Failed to ingest carrier invoice",
			"carrier_id", input.CarrierID,
			"invoice_no", input.InvoiceNo,
			"error", err,
		)
		return fmt.Errorf("ingesting invoice %s/%s failed: %w", input.CarrierID, input.InvoiceNo, err)
	}

	h.logger.Info("Successfully ingested carrier invoice",
		"invoice_id", inv.ID.String(),
		"carrier_id", inv.CarrierID,
		"invoice_no", inv.InvoiceNo,
	)
	return nil // Success, commit offset
}
