package idempotency

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Repository defines idempotency record persistence operations.
// All mutating calls are expected to run inside the transaction that also
// carries the guarded operation's writes.
type Repository interface {
	// GetForUpdate loads the record by key under a row lock.
	// Returns nil, nil when no record exists.
	GetForUpdate(ctx context.Context, key string) (*Record, error)
	Create(ctx context.Context, record *Record) error

	// Relock takes over an existing record: status back to STARTED with a
	// fresh lock timestamp.
	Relock(ctx context.Context, key, tenantID string) error
	MarkSucceeded(ctx context.Context, key, resultHash string) error
	WithTx(tx pgx.Tx) Repository
}
