package earningsvc

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/platform-finance-ledger/internal/domain/audit"
	"github.com/platform-finance-ledger/internal/domain/earning"
	idemdomain "github.com/platform-finance-ledger/internal/domain/idempotency"
	"github.com/platform-finance-ledger/internal/domain/ledger"
	"github.com/platform-finance-ledger/internal/domain/shared"
	"github.com/platform-finance-ledger/internal/finance/idempotency"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTxRunner runs the transactional function with a nil tx. The mocks'
// WithTx returns the mock itself, so no real transaction is needed.
type fakeTxRunner struct {
	commits   int
	rollbacks int
}

func (f *fakeTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if err := fn(nil); err != nil {
		f.rollbacks++
		return err
	}
	f.commits++
	return nil
}

// MockRecordRepository mocks the idempotency record repository
type MockRecordRepository struct {
	mock.Mock
}

func (m *MockRecordRepository) GetForUpdate(ctx context.Context, key string) (*idemdomain.Record, error) {
	args := m.Called(ctx, key)
	if rec := args.Get(0); rec != nil {
		return rec.(*idemdomain.Record), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRecordRepository) Create(ctx context.Context, record *idemdomain.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRecordRepository) Relock(ctx context.Context, key, tenantID string) error {
	args := m.Called(ctx, key, tenantID)
	return args.Error(0)
}

func (m *MockRecordRepository) MarkSucceeded(ctx context.Context, key, resultHash string) error {
	args := m.Called(ctx, key, resultHash)
	return args.Error(0)
}

func (m *MockRecordRepository) WithTx(tx pgx.Tx) idemdomain.Repository {
	return m
}

func newPassthroughManager() (*idempotency.Manager, *fakeTxRunner) {
	runner := &fakeTxRunner{}
	records := &MockRecordRepository{}
	records.On("GetForUpdate", mock.Anything, mock.Anything).Return(nil, nil)
	records.On("Create", mock.Anything, mock.Anything).Return(nil)
	records.On("MarkSucceeded", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return idempotency.NewManager(newTestLogger(), runner, records), runner
}

// MockEarningRepository mocks the earning repository
type MockEarningRepository struct {
	mock.Mock
}

func (m *MockEarningRepository) Create(ctx context.Context, e *earning.SellerEarning) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockEarningRepository) GetByID(ctx context.Context, id uuid.UUID) (*earning.SellerEarning, error) {
	args := m.Called(ctx, id)
	if e := args.Get(0); e != nil {
		return e.(*earning.SellerEarning), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEarningRepository) GetByShipmentID(ctx context.Context, shipmentID uuid.UUID) (*earning.SellerEarning, error) {
	args := m.Called(ctx, shipmentID)
	if e := args.Get(0); e != nil {
		return e.(*earning.SellerEarning), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEarningRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*earning.SellerEarning, error) {
	args := m.Called(ctx, id)
	if e := args.Get(0); e != nil {
		return e.(*earning.SellerEarning), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEarningRepository) SetExpectedClearDate(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockEarningRepository) MarkReleased(ctx context.Context, id uuid.UUID, releasedAt time.Time) error {
	args := m.Called(ctx, id, releasedAt)
	return args.Error(0)
}

func (m *MockEarningRepository) UpdateChargeback(ctx context.Context, id uuid.UUID, chargebackAmount, netAmount decimal.Decimal) error {
	args := m.Called(ctx, id, chargebackAmount, netAmount)
	return args.Error(0)
}

func (m *MockEarningRepository) ListReleasable(ctx context.Context, now time.Time, limit int) ([]*earning.SellerEarning, error) {
	args := m.Called(ctx, now, limit)
	if rows := args.Get(0); rows != nil {
		return rows.([]*earning.SellerEarning), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEarningRepository) WithTx(tx pgx.Tx) earning.Repository {
	return m
}

// MockLedgerRepository mocks the ledger repository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) EnsureAccount(ctx context.Context, companyID, currency string) (*ledger.Account, error) {
	args := m.Called(ctx, companyID, currency)
	if a := args.Get(0); a != nil {
		return a.(*ledger.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedgerRepository) GetAccountByCompany(ctx context.Context, companyID string) (*ledger.Account, error) {
	args := m.Called(ctx, companyID)
	if a := args.Get(0); a != nil {
		return a.(*ledger.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedgerRepository) AdjustAvailableBalance(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) error {
	args := m.Called(ctx, accountID, delta)
	return args.Error(0)
}

func (m *MockLedgerRepository) CreateGroup(ctx context.Context, group *ledger.Group) error {
	args := m.Called(ctx, group)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetGroupByIdempotencyKey(ctx context.Context, key string) (*ledger.Group, error) {
	args := m.Called(ctx, key)
	if g := args.Get(0); g != nil {
		return g.(*ledger.Group), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedgerRepository) AppendEntries(ctx context.Context, entries []*ledger.Entry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetEntriesByGroup(ctx context.Context, groupID uuid.UUID) ([]*ledger.Entry, error) {
	args := m.Called(ctx, groupID)
	if rows := args.Get(0); rows != nil {
		return rows.([]*ledger.Entry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedgerRepository) ListEntries(ctx context.Context, tenantID string, accountType ledger.AccountType, cursor *shared.Cursor, limit int) ([]*ledger.Entry, error) {
	args := m.Called(ctx, tenantID, accountType, cursor, limit)
	if rows := args.Get(0); rows != nil {
		return rows.([]*ledger.Entry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLedgerRepository) SumAmount(ctx context.Context, accountType ledger.AccountType, direction ledger.Direction, from, to time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, accountType, direction, from, to)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return m
}

// MockAuditRepository mocks the audit repository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Append(ctx context.Context, log *audit.Log) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockAuditRepository) List(ctx context.Context, cursor *shared.Cursor, limit int) ([]*audit.Log, error) {
	args := m.Called(ctx, cursor, limit)
	if rows := args.Get(0); rows != nil {
		return rows.([]*audit.Log), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) CountByEntity(ctx context.Context, entityID string) (int64, error) {
	args := m.Called(ctx, entityID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAuditRepository) WithTx(tx pgx.Tx) audit.Repository {
	return m
}
