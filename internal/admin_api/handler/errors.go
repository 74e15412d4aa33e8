package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/platform-finance-ledger/internal/domain/commission"
	"github.com/platform-finance-ledger/internal/domain/earning"
	"github.com/platform-finance-ledger/internal/domain/idempotency"
	"github.com/platform-finance-ledger/internal/domain/ledger"
	"github.com/platform-finance-ledger/internal/domain/shared"
	"github.com/platform-finance-ledger/internal/domain/shipping"
)

// respondServiceError maps domain errors onto HTTP statuses. Idempotent
// replays and in-flight duplicates are expected outcomes, not 500s.
func respondServiceError(c *gin.Context, logger *slog.Logger, err error) {
	var alreadyRunning idempotency.AlreadyRunningError
	var lineLocked shipping.ErrLineLocked
	var alreadyReleased earning.ErrAlreadyReleased
	var notEligible earning.ErrNotEligible
	var invoiceNotFound shipping.ErrInvoiceNotFound
	var lineNotFound shipping.ErrLineNotFound
	var shipmentNotFound shipping.ErrShipmentNotFound
	var earningNotFound earning.ErrEarningNotFound
	var planNotFound commission.ErrPlanNotFound
	var noActivePlan commission.ErrNoActivePlan
	var groupNotFound ledger.ErrGroupNotFound
	var accountNotFound ledger.ErrAccountNotFound

	switch {
	case errors.Is(err, idempotency.ErrAlreadySucceeded):
		RespondOK(c, gin.H{"message": "Operation already completed"})
	case errors.As(err, &alreadyRunning):
		RespondConflict(c, "Operation already in progress, retry later")
	case errors.As(err, &lineLocked):
		RespondConflict(c, err.Error())
	case errors.As(err, &alreadyReleased):
		RespondConflict(c, err.Error())
	case errors.As(err, &notEligible):
		RespondConflict(c, err.Error())
	case errors.As(err, &invoiceNotFound),
		errors.As(err, &lineNotFound),
		errors.As(err, &shipmentNotFound),
		errors.As(err, &earningNotFound),
		errors.As(err, &planNotFound),
		errors.As(err, &noActivePlan),
		errors.As(err, &groupNotFound),
		errors.As(err, &accountNotFound):
		RespondNotFound(c, err.Error())
	case errors.Is(err, shared.ErrInvalidCursor):
		RespondBadRequest(c, "Invalid pagination cursor")
	default:
		logger.Error("Unhandled service error", "error", err)
		RespondInternalError(c)
	}
}
