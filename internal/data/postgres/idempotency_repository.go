// Package postgres provides PostgreSQL implementations of the finance domain
// repositories. All repositories accept either the shared pool or an open
// transaction through the persistence.Querier interface, so multi-repository
// operations can share one atomic boundary.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/platform-finance-ledger/internal/domain/idempotency"
	"github.com/platform-finance-ledger/internal/platform/persistence"
)

// IdempotencyRepository implements idempotency.Repository for PostgreSQL
type IdempotencyRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewIdempotencyRepository creates a new PostgreSQL idempotency repository
func NewIdempotencyRepository(logger *slog.Logger, db *persistence.PostgresDB) idempotency.Repository {
	return &IdempotencyRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction. Record transitions must
// share the transaction of the operation they guard.
func (r *IdempotencyRepository) WithTx(tx pgx.Tx) idempotency.Repository {
	return &IdempotencyRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetForUpdate loads the record by key under FOR UPDATE so concurrent
// attempts on the same key serialize on the row lock. Returns nil, nil when
// no record exists.
func (r *IdempotencyRepository) GetForUpdate(ctx context.Context, key string) (*idempotency.Record, error) {
	query := `
		SELECT key, scope, tenant_id, status, locked_at, completed_at, result_hash, created_at
		FROM idempotency_records
		WHERE key = $1
		FOR UPDATE
	`

	var rec idempotency.Record
	var completedAt *time.Time
	var resultHash *string
	err := r.querier.QueryRow(ctx, query, key).Scan(
		&rec.Key,
		&rec.Scope,
		&rec.TenantID,
		&rec.Status,
		&rec.LockedAt,
		&completedAt,
		&resultHash,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get idempotency record", "key", key, "error", err)
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}

	rec.CompletedAt = completedAt
	if resultHash != nil {
		rec.ResultHash = *resultHash
	}

	return &rec, nil
}

// Create inserts a fresh STARTED record for the key
func (r *IdempotencyRepository) Create(ctx context.Context, rec *idempotency.Record) error {
	query := `
		INSERT INTO idempotency_records (key, scope, tenant_id, status, locked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.querier.Exec(ctx, query,
		rec.Key,
		rec.Scope,
		rec.TenantID,
		rec.Status,
		rec.LockedAt,
		rec.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create idempotency record", "key", rec.Key, "error", err)
		return fmt.Errorf("failed to create idempotency record: %w", err)
	}

	return nil
}

// Relock takes over a stale or FAILED record for a new attempt
func (r *IdempotencyRepository) Relock(ctx context.Context, key, tenantID string) error {
	query := `
		UPDATE idempotency_records
		SET status = $1, locked_at = $2, tenant_id = $3
		WHERE key = $4
	`

	_, err := r.querier.Exec(ctx, query, idempotency.StatusStarted, time.Now(), tenantID, key)
	if err != nil {
		r.logger.Error("Failed to relock idempotency record", "key", key, "error", err)
		return fmt.Errorf("failed to relock idempotency record: %w", err)
	}

	return nil
}

// MarkSucceeded finalizes the record. Committed atomically with the guarded
// operation's writes.
func (r *IdempotencyRepository) MarkSucceeded(ctx context.Context, key, resultHash string) error {
	query := `
		UPDATE idempotency_records
		SET status = $1, completed_at = $2, result_hash = $3
		WHERE key = $4
	`

	_, err := r.querier.Exec(ctx, query, idempotency.StatusSucceeded, time.Now(), resultHash, key)
	if err != nil {
		r.logger.Error("Failed to mark idempotency record succeeded", "key", key, "error", err)
		return fmt.Errorf("failed to mark idempotency record succeeded: %w", err)
	}

	return nil
}
