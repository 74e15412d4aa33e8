// Package earning defines the net amounts owed to marketplace sellers,
// pending scheduled or admin-overridden release.
package earning

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the payout lifecycle state. RELEASED is terminal.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusCleared  Status = "CLEARED"
	StatusReleased Status = "RELEASED"
)

// SellerEarning is the per-shipment payout record: gross sale minus
// commission minus chargebacks. ExpectedClearDate gates automatic release.
type SellerEarning struct {
	ID               uuid.UUID       `json:"id"`
	SellerCompanyID  string          `json:"seller_company_id"`
	ShipmentID       uuid.UUID       `json:"shipment_id"`
	GrossAmount      decimal.Decimal `json:"gross_amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	ChargebackAmount decimal.Decimal `json:"chargeback_amount"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	Currency         string          `json:"currency"`
	Status           Status          `json:"status"`
	ExpectedClearDate *time.Time     `json:"expected_clear_date,omitempty"`
	ReleasedAt       *time.Time      `json:"released_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Eligible reports whether the earning may be released at the given time.
func (e *SellerEarning) Eligible(now time.Time) bool {
	if e.Status == StatusReleased {
		return false
	}
	return e.ExpectedClearDate != nil && !e.ExpectedClearDate.After(now)
}
