package shippingsvc

import (
	"context"
	"encoding/json"
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
	"github.com/platform-finance-ledger/internal/domain/shipping"
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

// newPassthroughManager returns a manager whose record repository admits every
// key as a fresh attempt.
func newPassthroughManager() (*idempotency.Manager, *fakeTxRunner, *MockRecordRepository) {
	runner := &fakeTxRunner{}
	records := &MockRecordRepository{}
	records.On("GetForUpdate", mock.Anything, mock.Anything).Return(nil, nil)
	records.On("Create", mock.Anything, mock.Anything).Return(nil)
	records.On("MarkSucceeded", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return idempotency.NewManager(newTestLogger(), runner, records), runner, records
}

// MockShippingRepository mocks the shipping repository
type MockShippingRepository struct {
	mock.Mock
}

func (m *MockShippingRepository) CreateInvoice(ctx context.Context, invoice *shipping.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockShippingRepository) CreateLines(ctx context.Context, lines []*shipping.InvoiceLine) error {
	args := m.Called(ctx, lines)
	return args.Error(0)
}

func (m *MockShippingRepository) GetInvoiceByID(ctx context.Context, id uuid.UUID) (*shipping.Invoice, error) {
	args := m.Called(ctx, id)
	if inv := args.Get(0); inv != nil {
		return inv.(*shipping.Invoice), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockShippingRepository) GetInvoiceByNaturalKey(ctx context.Context, carrierID, invoiceNo string) (*shipping.Invoice, error) {
	args := m.Called(ctx, carrierID, invoiceNo)
	if inv := args.Get(0); inv != nil {
		return inv.(*shipping.Invoice), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockShippingRepository) UpdateInvoiceStatus(ctx context.Context, id uuid.UUID, status shipping.InvoiceStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockShippingRepository) ListInvoices(ctx context.Context, status shipping.InvoiceStatus, cursor *shared.Cursor, limit int) ([]*shipping.Invoice, error) {
	args := m.Called(ctx, status, cursor, limit)
	if rows := args.Get(0); rows != nil {
		return rows.([]*shipping.Invoice), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockShippingRepository) GetLineByID(ctx context.Context, id uuid.UUID) (*shipping.InvoiceLine, error) {
	args := m.Called(ctx, id)
	if line := args.Get(0); line != nil {
		return line.(*shipping.InvoiceLine), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockShippingRepository) GetLineForUpdate(ctx context.Context, id uuid.UUID) (*shipping.InvoiceLine, error) {
	args := m.Called(ctx, id)
	if line := args.Get(0); line != nil {
		return line.(*shipping.InvoiceLine), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockShippingRepository) UpdateLineMatch(ctx context.Context, line *shipping.InvoiceLine) error {
	args := m.Called(ctx, line)
	return args.Error(0)
}

func (m *MockShippingRepository) ListLinesByStatus(ctx context.Context, status shipping.MatchStatus, cursor *shared.Cursor, limit int) ([]*shipping.InvoiceLine, error) {
	args := m.Called(ctx, status, cursor, limit)
	if rows := args.Get(0); rows != nil {
		return rows.([]*shipping.InvoiceLine), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockShippingRepository) CountLinesOutstanding(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	args := m.Called(ctx, invoiceID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockShippingRepository) GetShipmentByID(ctx context.Context, id uuid.UUID) (*shipping.Shipment, error) {
	args := m.Called(ctx, id)
	if s := args.Get(0); s != nil {
		return s.(*shipping.Shipment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockShippingRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*shipping.NetworkOrder, error) {
	args := m.Called(ctx, id)
	if o := args.Get(0); o != nil {
		return o.(*shipping.NetworkOrder), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockShippingRepository) WithTx(tx pgx.Tx) shipping.Repository {
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

// MockArchive mocks the raw payload archive
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Store(ctx context.Context, carrierID, invoiceNo string, payload json.RawMessage) (string, error) {
	args := m.Called(ctx, carrierID, invoiceNo, payload)
	return args.String(0), args.Error(1)
}

func (m *MockArchive) Get(ctx context.Context, ref string) (*shipping.ArchivedPayload, error) {
	args := m.Called(ctx, ref)
	if doc := args.Get(0); doc != nil {
		return doc.(*shipping.ArchivedPayload), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockArchive) GetByNaturalKey(ctx context.Context, carrierID, invoiceNo string) (*shipping.ArchivedPayload, error) {
	args := m.Called(ctx, carrierID, invoiceNo)
	if doc := args.Get(0); doc != nil {
		return doc.(*shipping.ArchivedPayload), args.Error(1)
	}
	return nil, args.Error(1)
}
