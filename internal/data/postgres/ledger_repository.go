package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/platform-finance-ledger/internal/domain/ledger"
	"github.com/platform-finance-ledger/internal/domain/shared"
	"github.com/platform-finance-ledger/internal/platform/persistence"
)

// LedgerRepository implements the ledger.Repository interface for PostgreSQL
type LedgerRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &LedgerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so postings share the atomic
// boundary of the idempotency record transition.
func (r *LedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &LedgerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const accountColumns = `id, company_id, currency, available_balance, pending_balance, created_at, updated_at`

// EnsureAccount returns the company's ledger account, creating a zero-balance
// one when absent. Runs inside the posting transaction so a rollback also
// removes the account.
func (r *LedgerRepository) EnsureAccount(ctx context.Context, companyID, currency string) (*ledger.Account, error) {
	acc, err := r.GetAccountByCompany(ctx, companyID)
	if err == nil {
		return acc, nil
	}
	var notFound ledger.ErrAccountNotFound
	if !errors.As(err, &notFound) {
		return nil, err
	}

	now := time.Now()
	acc = &ledger.Account{
		ID:               uuid.New(),
		CompanyID:        companyID,
		Currency:         currency,
		AvailableBalance: decimal.Zero,
		PendingBalance:   decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	query := `
		INSERT INTO ledger_accounts (id, company_id, currency, available_balance, pending_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.querier.Exec(ctx, query,
		acc.ID,
		acc.CompanyID,
		acc.Currency,
		acc.AvailableBalance,
		acc.PendingBalance,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create ledger account", "company_id", companyID, "error", err)
		return nil, fmt.Errorf("failed to create ledger account: %w", err)
	}

	return acc, nil
}

// GetAccountByCompany retrieves a ledger account by its owning company
func (r *LedgerRepository) GetAccountByCompany(ctx context.Context, companyID string) (*ledger.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM ledger_accounts
		WHERE company_id = $1
	`

	var acc ledger.Account
	err := r.querier.QueryRow(ctx, query, companyID).Scan(
		&acc.ID,
		&acc.CompanyID,
		&acc.Currency,
		&acc.AvailableBalance,
		&acc.PendingBalance,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrAccountNotFound{CompanyID: companyID}
		}
		r.logger.Error("Failed to get ledger account", "company_id", companyID, "error", err)
		return nil, fmt.Errorf("failed to get ledger account: %w", err)
	}

	return &acc, nil
}

// AdjustAvailableBalance applies a signed delta to the account's available balance
func (r *LedgerRepository) AdjustAvailableBalance(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) error {
	query := `
		UPDATE ledger_accounts
		SET available_balance = available_balance + $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, delta, accountID)
	if err != nil {
		r.logger.Error("Failed to adjust ledger account balance", "account_id", accountID.String(), "error", err)
		return fmt.Errorf("failed to adjust ledger account balance: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ledger.ErrAccountNotFound{CompanyID: accountID.String()}
	}

	return nil
}

// CreateGroup stores the group heading one business event's entries
func (r *LedgerRepository) CreateGroup(ctx context.Context, group *ledger.Group) error {
	query := `
		INSERT INTO ledger_groups (id, idempotency_key, tenant_id, type, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.querier.Exec(ctx, query,
		group.ID,
		group.IdempotencyKey,
		group.TenantID,
		group.Type,
		group.Description,
		group.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create ledger group", "idempotency_key", group.IdempotencyKey, "error", err)
		return fmt.Errorf("failed to create ledger group: %w", err)
	}

	return nil
}

// GetGroupByIdempotencyKey retrieves a group by the key of the posting that
// created it, for replay short-circuits.
func (r *LedgerRepository) GetGroupByIdempotencyKey(ctx context.Context, key string) (*ledger.Group, error) {
	query := `
		SELECT id, idempotency_key, tenant_id, type, description, created_at
		FROM ledger_groups
		WHERE idempotency_key = $1
	`

	var group ledger.Group
	err := r.querier.QueryRow(ctx, query, key).Scan(
		&group.ID,
		&group.IdempotencyKey,
		&group.TenantID,
		&group.Type,
		&group.Description,
		&group.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrGroupNotFound{IdempotencyKey: key}
		}
		r.logger.Error("Failed to get ledger group", "idempotency_key", key, "error", err)
		return nil, fmt.Errorf("failed to get ledger group: %w", err)
	}

	return &group, nil
}

const entryColumns = `id, tenant_id, ledger_account_id, group_id, account_type, direction, amount, currency, ref_type, reference_id, created_at`

// AppendEntries inserts the balanced entry set of one business event.
// Entries are append-only; there is no update or delete path.
func (r *LedgerRepository) AppendEntries(ctx context.Context, entries []*ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (id, tenant_id, ledger_account_id, group_id, account_type, direction, amount, currency, ref_type, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	for _, entry := range entries {
		_, err := r.querier.Exec(ctx, query,
			entry.ID,
			entry.TenantID,
			entry.LedgerAccountID,
			entry.GroupID,
			entry.AccountType,
			entry.Direction,
			entry.Amount,
			entry.Currency,
			entry.RefType,
			entry.ReferenceID,
			entry.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to append ledger entry",
				"group_id", entry.GroupID.String(),
				"account_type", string(entry.AccountType),
				"error", err,
			)
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}
	}

	return nil
}

// GetEntriesByGroup retrieves the full entry set of one business event
func (r *LedgerRepository) GetEntriesByGroup(ctx context.Context, groupID uuid.UUID) ([]*ledger.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE group_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.querier.Query(ctx, query, groupID)
	if err != nil {
		r.logger.Error("Failed to get ledger entries by group", "group_id", groupID.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger entries by group: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListEntries returns a tenant's entries, newest first, cursor-paginated.
// An empty accountType matches all account types.
func (r *LedgerRepository) ListEntries(ctx context.Context, tenantID string, accountType ledger.AccountType, cursor *shared.Cursor, limit int) ([]*ledger.Entry, error) {
	conditions := "tenant_id = $1"
	args := []interface{}{tenantID}

	if accountType != "" {
		args = append(args, accountType)
		conditions += fmt.Sprintf(" AND account_type = $%d", len(args))
	}
	if cursor != nil {
		args = append(args, cursor.CreatedAt, cursor.ID)
		conditions += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM ledger_entries
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d
	`, entryColumns, conditions, len(args))

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list ledger entries", "tenant_id", tenantID, "error", err)
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// SumAmount totals entry amounts for one account type and direction within a
// time window
func (r *LedgerRepository) SumAmount(ctx context.Context, accountType ledger.AccountType, direction ledger.Direction, from, to time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE account_type = $1 AND direction = $2 AND created_at >= $3 AND created_at <= $4
	`

	var sum decimal.Decimal
	err := r.querier.QueryRow(ctx, query, accountType, direction, from, to).Scan(&sum)
	if err != nil {
		r.logger.Error("Failed to sum ledger entries", "account_type", string(accountType), "error", err)
		return decimal.Zero, fmt.Errorf("failed to sum ledger entries: %w", err)
	}

	return sum, nil
}

func scanEntries(rows pgx.Rows) ([]*ledger.Entry, error) {
	var entries []*ledger.Entry
	for rows.Next() {
		var entry ledger.Entry
		err := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&entry.LedgerAccountID,
			&entry.GroupID,
			&entry.AccountType,
			&entry.Direction,
			&entry.Amount,
			&entry.Currency,
			&entry.RefType,
			&entry.ReferenceID,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over ledger entries: %w", err)
	}

	return entries, nil
}
