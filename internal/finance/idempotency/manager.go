// Package idempotency executes financially significant operations exactly
// once. Every guarded operation runs inside one database transaction together
// with its idempotency record transition, so an operation's side effects and
// the record that says they happened commit or roll back as a unit.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	domain "github.com/platform-finance-ledger/internal/domain/idempotency"
	"github.com/platform-finance-ledger/internal/platform/persistence"
)

// TxRunner runs a function inside one database transaction, rolling back on
// error. Satisfied by *persistence.PostgresDB.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

var _ TxRunner = (*persistence.PostgresDB)(nil)

// Manager coordinates keyed exactly-once execution over the record table.
type Manager struct {
	db     TxRunner
	repo   domain.Repository
	logger *slog.Logger
}

// NewManager creates a new idempotency manager
func NewManager(logger *slog.Logger, db TxRunner, repo domain.Repository) *Manager {
	return &Manager{
		db:     db,
		repo:   repo,
		logger: logger,
	}
}

// Run executes op at most once for the key. The record row is locked FOR
// UPDATE for the duration, so concurrent attempts on the same key serialize
// and then observe the outcome of the winner.
//
// A prior SUCCEEDED record short-circuits with domain.ErrAlreadySucceeded.
// A fresh STARTED record rejects with domain.AlreadyRunningError. A stale
// STARTED record or a FAILED record is taken over. When op fails, the whole
// transaction rolls back, including the record insert, so a retry re-enters
// as a fresh attempt.
func Run[T any](ctx context.Context, m *Manager, key, scope, tenantID string, op func(tx pgx.Tx) (T, error)) (T, error) {
	var result T

	err := m.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := m.repo.WithTx(tx)

		rec, err := repo.GetForUpdate(ctx, key)
		if err != nil {
			return err
		}

		now := time.Now()
		switch {
		case rec == nil:
			err := repo.Create(ctx, &domain.Record{
				Key:       key,
				Scope:     scope,
				TenantID:  tenantID,
				Status:    domain.StatusStarted,
				LockedAt:  now,
				CreatedAt: now,
			})
			if err != nil {
				return err
			}
		case rec.Status == domain.StatusSucceeded:
			return domain.ErrAlreadySucceeded
		case rec.Status == domain.StatusStarted && !rec.Stale(now):
			return domain.AlreadyRunningError{Key: key}
		default:
			// FAILED, or STARTED past the staleness threshold: take over.
			m.logger.Warn("Taking over idempotency key", "key", key, "previous_status", string(rec.Status))
			if err := repo.Relock(ctx, key, tenantID); err != nil {
				return err
			}
		}

		result, err = op(tx)
		if err != nil {
			return err
		}

		hash, err := hashResult(result)
		if err != nil {
			return err
		}

		return repo.MarkSucceeded(ctx, key, hash)
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return result, nil
}

func hashResult(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to hash operation result: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
