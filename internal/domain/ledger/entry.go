// Package ledger defines the append-only double-entry accounting records that
// form the system of record for money movement. Entries are never updated or
// deleted; corrections are posted as new offsetting entries.
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType identifies a platform accounting bucket
type AccountType string

const (
	AccountEscrowLiability            AccountType = "ESCROW_LIABILITY"
	AccountPlatformRevenueCommission  AccountType = "PLATFORM_REVENUE_COMMISSION"
	AccountShippingExpense            AccountType = "SHIPPING_EXPENSE"
	AccountSellerPayable              AccountType = "SELLER_PAYABLE"
	AccountSellerChargebackReceivable AccountType = "SELLER_CHARGEBACK_RECEIVABLE"
	AccountPlatformIntercoClearing    AccountType = "PLATFORM_INTERCO_CLEARING"
	AccountSellerIntercoClearing      AccountType = "SELLER_INTERCO_CLEARING"
)

// Direction is the side of a double-entry posting
type Direction string

const (
	Debit  Direction = "DEBIT"
	Credit Direction = "CREDIT"
)

// GroupType tags the business event a ledger group records
type GroupType string

const (
	GroupEarningRelease     GroupType = "EARNING_RELEASE"
	GroupShippingChargeback GroupType = "SHIPPING_CHARGEBACK"
)

// Group collects the balanced debits and credits of a single business event
// so they can be fetched and verified atomically. The idempotency key of the
// posting operation doubles as the group's natural key.
type Group struct {
	ID             uuid.UUID `json:"id"`
	IdempotencyKey string    `json:"idempotency_key"`
	TenantID       string    `json:"tenant_id"`
	Type           GroupType `json:"type"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Entry is one debit or credit line. Append-only.
type Entry struct {
	ID              uuid.UUID       `json:"id"`
	TenantID        string          `json:"tenant_id"`
	LedgerAccountID uuid.UUID       `json:"ledger_account_id"`
	GroupID         uuid.UUID       `json:"group_id"`
	AccountType     AccountType     `json:"account_type"`
	Direction       Direction       `json:"direction"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	RefType         string          `json:"ref_type"`
	ReferenceID     string          `json:"reference_id"`
	CreatedAt       time.Time       `json:"created_at"`
}
