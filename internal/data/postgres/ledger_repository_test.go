package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platform-finance-ledger/internal/domain/ledger"
)

func TestLedgerRepository_GetAccountByCompany(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}
	companyID := "seller-co-1"
	now := time.Now()

	expectedAccount := &ledger.Account{
		ID:               uuid.New(),
		CompanyID:        companyID,
		Currency:         "TRY",
		AvailableBalance: decimal.RequireFromString("150.75"),
		PendingBalance:   decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	query := `
		SELECT id, company_id, currency, available_balance, pending_balance, created_at, updated_at
		FROM ledger_accounts
		WHERE company_id = \$1
	`

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"id", "company_id", "currency", "available_balance", "pending_balance", "created_at", "updated_at"}).
			AddRow(expectedAccount.ID, expectedAccount.CompanyID, expectedAccount.Currency, expectedAccount.AvailableBalance, expectedAccount.PendingBalance, expectedAccount.CreatedAt, expectedAccount.UpdatedAt)
		mock.ExpectQuery(query).WithArgs(companyID).WillReturnRows(rows)

		acc, err := repo.GetAccountByCompany(ctx, companyID)
		assert.NoError(t, err)
		assert.Equal(t, expectedAccount, acc)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(companyID).WillReturnError(pgx.ErrNoRows)

		acc, err := repo.GetAccountByCompany(ctx, companyID)
		assert.Error(t, err)
		assert.Nil(t, acc)
		var notFoundErr ledger.ErrAccountNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, companyID, notFoundErr.CompanyID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("some db error")
		mock.ExpectQuery(query).WithArgs(companyID).WillReturnError(dbErr)

		acc, err := repo.GetAccountByCompany(ctx, companyID)
		assert.Error(t, err)
		assert.Nil(t, acc)
		assert.Contains(t, err.Error(), "failed to get ledger account")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_EnsureAccount(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}
	companyID := "seller-co-2"
	now := time.Now()

	selectQuery := `
		SELECT id, company_id, currency, available_balance, pending_balance, created_at, updated_at
		FROM ledger_accounts
		WHERE company_id = \$1
	`
	insertQuery := `
		INSERT INTO ledger_accounts \(id, company_id, currency, available_balance, pending_balance, created_at, updated_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\)
	`

	t.Run("existing account returned as-is", func(t *testing.T) {
		accID := uuid.New()
		rows := pgxmock.NewRows([]string{"id", "company_id", "currency", "available_balance", "pending_balance", "created_at", "updated_at"}).
			AddRow(accID, companyID, "TRY", decimal.RequireFromString("10"), decimal.Zero, now, now)
		mock.ExpectQuery(selectQuery).WithArgs(companyID).WillReturnRows(rows)

		acc, err := repo.EnsureAccount(ctx, companyID, "TRY")
		assert.NoError(t, err)
		require.NotNil(t, acc)
		assert.Equal(t, accID, acc.ID)
		assert.True(t, acc.AvailableBalance.Equal(decimal.RequireFromString("10")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent account created with zero balances", func(t *testing.T) {
		mock.ExpectQuery(selectQuery).WithArgs(companyID).WillReturnError(pgx.ErrNoRows)
		mock.ExpectExec(insertQuery).
			WithArgs(pgxmock.AnyArg(), companyID, "TRY", decimal.Zero, decimal.Zero, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		acc, err := repo.EnsureAccount(ctx, companyID, "TRY")
		assert.NoError(t, err)
		require.NotNil(t, acc)
		assert.Equal(t, companyID, acc.CompanyID)
		assert.True(t, acc.AvailableBalance.IsZero())
		assert.True(t, acc.PendingBalance.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error on lookup propagates", func(t *testing.T) {
		dbErr := errors.New("lookup db error")
		mock.ExpectQuery(selectQuery).WithArgs(companyID).WillReturnError(dbErr)

		acc, err := repo.EnsureAccount(ctx, companyID, "TRY")
		assert.Error(t, err)
		assert.Nil(t, acc)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_AdjustAvailableBalance(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}
	accID := uuid.New()
	delta := decimal.RequireFromString("-25.50")

	query := `
		UPDATE ledger_accounts
		SET available_balance = available_balance \+ \$1, updated_at = NOW\(\)
		WHERE id = \$2
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(delta, accID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.AdjustAvailableBalance(ctx, accID, delta)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing account", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(delta, accID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.AdjustAvailableBalance(ctx, accID, delta)
		assert.Error(t, err)
		var notFoundErr ledger.ErrAccountNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("adjust db error")
		mock.ExpectExec(query).
			WithArgs(delta, accID).
			WillReturnError(dbErr)

		err := repo.AdjustAvailableBalance(ctx, accID, delta)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to adjust ledger account balance")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_GetGroupByIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}
	key := "EARNING_RELEASE:44444444-4444-4444-4444-444444444444"
	now := time.Now()

	expectedGroup := &ledger.Group{
		ID:             uuid.New(),
		IdempotencyKey: key,
		TenantID:       "PLATFORM_TENANT",
		Type:           ledger.GroupEarningRelease,
		Description:    "earning release",
		CreatedAt:      now,
	}

	query := `
		SELECT id, idempotency_key, tenant_id, type, description, created_at
		FROM ledger_groups
		WHERE idempotency_key = \$1
	`

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"id", "idempotency_key", "tenant_id", "type", "description", "created_at"}).
			AddRow(expectedGroup.ID, expectedGroup.IdempotencyKey, expectedGroup.TenantID, expectedGroup.Type, expectedGroup.Description, expectedGroup.CreatedAt)
		mock.ExpectQuery(query).WithArgs(key).WillReturnRows(rows)

		group, err := repo.GetGroupByIdempotencyKey(ctx, key)
		assert.NoError(t, err)
		assert.Equal(t, expectedGroup, group)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(key).WillReturnError(pgx.ErrNoRows)

		group, err := repo.GetGroupByIdempotencyKey(ctx, key)
		assert.Error(t, err)
		assert.Nil(t, group)
		var notFoundErr ledger.ErrGroupNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, key, notFoundErr.IdempotencyKey)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_AppendEntries(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}
	now := time.Now()
	groupID := uuid.New()
	accountID := uuid.New()
	refID := uuid.New().String()

	entries := []*ledger.Entry{
		{
			ID:              uuid.New(),
			TenantID:        "PLATFORM_TENANT",
			LedgerAccountID: accountID,
			GroupID:         groupID,
			AccountType:     ledger.AccountEscrowLiability,
			Direction:       ledger.Debit,
			Amount:          decimal.RequireFromString("100"),
			Currency:        "TRY",
			RefType:         "SELLER_EARNING",
			ReferenceID:     refID,
			CreatedAt:       now,
		},
		{
			ID:              uuid.New(),
			TenantID:        "PLATFORM_TENANT",
			LedgerAccountID: accountID,
			GroupID:         groupID,
			AccountType:     ledger.AccountPlatformRevenueCommission,
			Direction:       ledger.Credit,
			Amount:          decimal.RequireFromString("10"),
			Currency:        "TRY",
			RefType:         "SELLER_EARNING",
			ReferenceID:     refID,
			CreatedAt:       now,
		},
	}

	query := `
		INSERT INTO ledger_entries \(id, tenant_id, ledger_account_id, group_id, account_type, direction, amount, currency, ref_type, reference_id, created_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9, \$10, \$11\)
	`

	t.Run("success", func(t *testing.T) {
		for _, e := range entries {
			mock.ExpectExec(query).
				WithArgs(e.ID, e.TenantID, e.LedgerAccountID, e.GroupID, e.AccountType, e.Direction, e.Amount, e.Currency, e.RefType, e.ReferenceID, e.CreatedAt).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
		}

		err := repo.AppendEntries(ctx, entries)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure on first entry stops the batch", func(t *testing.T) {
		dbErr := errors.New("insert db error")
		e := entries[0]
		mock.ExpectExec(query).
			WithArgs(e.ID, e.TenantID, e.LedgerAccountID, e.GroupID, e.AccountType, e.Direction, e.Amount, e.Currency, e.RefType, e.ReferenceID, e.CreatedAt).
			WillReturnError(dbErr)

		err := repo.AppendEntries(ctx, entries)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to append ledger entry")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
