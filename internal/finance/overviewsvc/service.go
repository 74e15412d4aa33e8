// Package overviewsvc aggregates platform-side ledger figures for the finance
// dashboard. Read-only; every number is a sum over the entry log.
package overviewsvc

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/platform-finance-ledger/internal/domain/ledger"
	"github.com/platform-finance-ledger/internal/domain/shared"
)

// Overview bundles the platform revenue and exposure figures for a period
type Overview struct {
	From              time.Time       `json:"from"`
	To                time.Time       `json:"to"`
	CommissionRevenue decimal.Decimal `json:"commission_revenue"`
	ShippingExpense   decimal.Decimal `json:"shipping_expense"`
	EscrowReleased    decimal.Decimal `json:"escrow_released"`
}

// Service reads platform-level ledger aggregates
type Service interface {
	GetOverview(ctx context.Context, from, to time.Time) (*Overview, error)

	// ListPlatformEntries returns the platform tenant's ledger entries,
	// newest first. An empty accountType matches all account types.
	ListPlatformEntries(ctx context.Context, accountType ledger.AccountType, cursor string, take int) (*shared.Page[*ledger.Entry], error)
}

// ServiceImpl implements the Service interface
type ServiceImpl struct {
	ledgerRepo ledger.Repository
	logger     *slog.Logger
}

// NewService creates a new overview service
func NewService(logger *slog.Logger, ledgerRepo ledger.Repository) Service {
	return &ServiceImpl{
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

// GetOverview sums the period's platform revenue and expense entries
func (s *ServiceImpl) GetOverview(ctx context.Context, from, to time.Time) (*Overview, error) {
	commissionRevenue, err := s.ledgerRepo.SumAmount(ctx, ledger.AccountPlatformRevenueCommission, ledger.Credit, from, to)
	if err != nil {
		return nil, err
	}

	shippingExpense, err := s.ledgerRepo.SumAmount(ctx, ledger.AccountShippingExpense, ledger.Debit, from, to)
	if err != nil {
		return nil, err
	}

	escrowReleased, err := s.ledgerRepo.SumAmount(ctx, ledger.AccountEscrowLiability, ledger.Debit, from, to)
	if err != nil {
		return nil, err
	}

	return &Overview{
		From:              from,
		To:                to,
		CommissionRevenue: commissionRevenue,
		ShippingExpense:   shippingExpense,
		EscrowReleased:    escrowReleased,
	}, nil
}

// ListPlatformEntries returns the platform tenant's ledger entries
func (s *ServiceImpl) ListPlatformEntries(ctx context.Context, accountType ledger.AccountType, cursorStr string, take int) (*shared.Page[*ledger.Entry], error) {
	cursor, err := shared.DecodeCursor(cursorStr)
	if err != nil {
		return nil, err
	}

	entries, err := s.ledgerRepo.ListEntries(ctx, shared.PlatformTenant, accountType, cursor, take+1)
	if err != nil {
		return nil, err
	}

	page := shared.NewPage(entries, take, func(e *ledger.Entry) shared.Cursor {
		return shared.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	return &page, nil
}
