// Package audit defines the immutable record of administrative mutations.
// One row per admin action, written inside the same transaction as the
// mutation it describes, so neither can exist without the other.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/platform-finance-ledger/internal/domain/shared"
)

// Action tags, one per administrative mutation
const (
	ActionShippingLineMatched    = "SHIPPING_LINE_MATCHED"
	ActionShippingLineDisputed   = "SHIPPING_LINE_DISPUTED"
	ActionCommissionPlanCreated  = "COMMISSION_PLAN_CREATED"
	ActionCommissionPlanActivated = "COMMISSION_PLAN_ACTIVATED"
	ActionEarningManualRelease   = "EARNING_MANUAL_RELEASE"
)

// Log is one append-only audit row.
type Log struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    string          `json:"tenant_id"`
	Action      string          `json:"action"`
	Actor       string          `json:"actor"`
	EntityID    string          `json:"entity_id"`
	EntityType  string          `json:"entity_type"`
	PayloadJSON json.RawMessage `json:"payload_json,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Repository appends and lists audit rows. There is no update or delete.
type Repository interface {
	Append(ctx context.Context, log *Log) error
	List(ctx context.Context, cursor *shared.Cursor, limit int) ([]*Log, error)
	CountByEntity(ctx context.Context, entityID string) (int64, error)
	WithTx(tx pgx.Tx) Repository
}
