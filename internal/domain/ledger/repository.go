package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/platform-finance-ledger/internal/domain/shared"
)

// Repository manages ledger persistence. All mutating operations run inside
// an idempotency-guarded transaction; there are no unguarded write paths.
type Repository interface {
	// EnsureAccount returns the company's ledger account, creating it with
	// zero balances when absent.
	EnsureAccount(ctx context.Context, companyID, currency string) (*Account, error)
	GetAccountByCompany(ctx context.Context, companyID string) (*Account, error)

	// AdjustAvailableBalance applies a signed delta to the account's
	// available balance.
	AdjustAvailableBalance(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) error

	CreateGroup(ctx context.Context, group *Group) error
	GetGroupByIdempotencyKey(ctx context.Context, key string) (*Group, error)

	// AppendEntries inserts the balanced entry set of one business event.
	AppendEntries(ctx context.Context, entries []*Entry) error
	GetEntriesByGroup(ctx context.Context, groupID uuid.UUID) ([]*Entry, error)

	// ListEntries returns a tenant's entries, newest first. An empty
	// accountType matches all account types.
	ListEntries(ctx context.Context, tenantID string, accountType AccountType, cursor *shared.Cursor, limit int) ([]*Entry, error)

	// SumAmount totals entry amounts for one account type and direction
	// within a time window, for overview reporting.
	SumAmount(ctx context.Context, accountType AccountType, direction Direction, from, to time.Time) (decimal.Decimal, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrAccountNotFound indicates a missing ledger account
type ErrAccountNotFound struct {
	CompanyID string
}

func (e ErrAccountNotFound) Error() string {
	return "ledger account not found for company: " + e.CompanyID
}

// ErrGroupNotFound indicates a missing ledger group
type ErrGroupNotFound struct {
	IdempotencyKey string
}

func (e ErrGroupNotFound) Error() string {
	return "ledger group not found: " + e.IdempotencyKey
}
