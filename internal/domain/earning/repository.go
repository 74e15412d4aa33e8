package earning

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Repository defines seller earning persistence operations.
type Repository interface {
	Create(ctx context.Context, e *SellerEarning) error
	GetByID(ctx context.Context, id uuid.UUID) (*SellerEarning, error)
	GetByShipmentID(ctx context.Context, shipmentID uuid.UUID) (*SellerEarning, error)

	// GetForUpdate loads an earning under a row lock for state transitions.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*SellerEarning, error)

	// SetExpectedClearDate force-sets the gate the release engine checks.
	SetExpectedClearDate(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkReleased flips the earning to its terminal state.
	MarkReleased(ctx context.Context, id uuid.UUID, releasedAt time.Time) error

	// UpdateChargeback refreshes the chargeback/net reporting cache after a
	// chargeback posting; the ledger entries remain the truth.
	UpdateChargeback(ctx context.Context, id uuid.UUID, chargebackAmount, netAmount decimal.Decimal) error

	// ListReleasable returns earnings whose clear date has passed and whose
	// status is not yet RELEASED, oldest first.
	ListReleasable(ctx context.Context, now time.Time, limit int) ([]*SellerEarning, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrEarningNotFound indicates a missing seller earning
type ErrEarningNotFound struct {
	EarningID uuid.UUID
}

func (e ErrEarningNotFound) Error() string {
	return "seller earning not found: " + e.EarningID.String()
}

// ErrAlreadyReleased indicates a release or override attempt on a terminal earning
type ErrAlreadyReleased struct {
	EarningID uuid.UUID
}

func (e ErrAlreadyReleased) Error() string {
	return "seller earning already released: " + e.EarningID.String()
}

// ErrNotEligible indicates the clear-date gate has not been satisfied
type ErrNotEligible struct {
	EarningID uuid.UUID
}

func (e ErrNotEligible) Error() string {
	return "seller earning not eligible for release: " + e.EarningID.String()
}
