package shipping

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/platform-finance-ledger/internal/domain/shared"
)

// Repository defines shipping invoice, line, and shipment persistence.
type Repository interface {
	CreateInvoice(ctx context.Context, invoice *Invoice) error
	CreateLines(ctx context.Context, lines []*InvoiceLine) error
	GetInvoiceByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetInvoiceByNaturalKey(ctx context.Context, carrierID, invoiceNo string) (*Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, id uuid.UUID, status InvoiceStatus) error

	// ListInvoices returns invoices newest first. An empty status matches
	// all reconciliation states.
	ListInvoices(ctx context.Context, status InvoiceStatus, cursor *shared.Cursor, limit int) ([]*Invoice, error)

	GetLineByID(ctx context.Context, id uuid.UUID) (*InvoiceLine, error)

	// GetLineForUpdate loads a line under a row lock for state transitions.
	GetLineForUpdate(ctx context.Context, id uuid.UUID) (*InvoiceLine, error)
	UpdateLineMatch(ctx context.Context, line *InvoiceLine) error
	ListLinesByStatus(ctx context.Context, status MatchStatus, cursor *shared.Cursor, limit int) ([]*InvoiceLine, error)

	// CountLinesOutstanding returns how many of the invoice's lines have not
	// reached a terminal match status, for the invoice status rollup.
	CountLinesOutstanding(ctx context.Context, invoiceID uuid.UUID) (int64, error)

	GetShipmentByID(ctx context.Context, id uuid.UUID) (*Shipment, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*NetworkOrder, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrInvoiceNotFound indicates a missing carrier invoice
type ErrInvoiceNotFound struct {
	CarrierID string
	InvoiceNo string
}

func (e ErrInvoiceNotFound) Error() string {
	return "shipping invoice not found: " + e.CarrierID + "/" + e.InvoiceNo
}

// ErrLineNotFound indicates a missing invoice line
type ErrLineNotFound struct {
	LineID uuid.UUID
}

func (e ErrLineNotFound) Error() string {
	return "shipping invoice line not found: " + e.LineID.String()
}

// ErrShipmentNotFound indicates a missing shipment
type ErrShipmentNotFound struct {
	ShipmentID uuid.UUID
}

func (e ErrShipmentNotFound) Error() string {
	return "shipment not found: " + e.ShipmentID.String()
}

// ErrLineLocked indicates an attempt to re-match a RECONCILED or DISPUTED line
type ErrLineLocked struct {
	LineID uuid.UUID
	Status MatchStatus
}

func (e ErrLineLocked) Error() string {
	return "shipping line " + e.LineID.String() + " is locked in status " + string(e.Status)
}
