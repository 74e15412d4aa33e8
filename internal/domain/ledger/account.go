package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is the per-company balance cache over the entry log. Available
// balance is what a seller can withdraw; the entries remain the truth.
type Account struct {
	ID               uuid.UUID       `json:"id"`
	CompanyID        string          `json:"company_id"`
	Currency         string          `json:"currency"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	PendingBalance   decimal.Decimal `json:"pending_balance"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
