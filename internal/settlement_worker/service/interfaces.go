package service

import (
	"context"

	"github.com/platform-finance-ledger/internal/domain/shipping"
	"github.com/platform-finance-ledger/internal/finance/shippingsvc"
)

// IngestService is the slice of the shipping service the worker needs.
// Satisfied by shippingsvc.Service.
type IngestService interface {
	IngestInvoice(ctx context.Context, input *shippingsvc.IngestInput) (*shipping.Invoice, error)
}
