// Package auditsvc records and reads the finance audit trail. Appends always
// run inside a caller-supplied transaction so the audit row commits or rolls
// back with the mutation it documents.
package auditsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/platform-finance-ledger/internal/domain/audit"
	"github.com/platform-finance-ledger/internal/domain/shared"
)

// Recorder appends and lists finance audit rows
type Recorder struct {
	auditRepo audit.Repository
	logger    *slog.Logger
}

// NewRecorder creates a new audit recorder
func NewRecorder(logger *slog.Logger, auditRepo audit.Repository) *Recorder {
	return &Recorder{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// Record appends one audit row within the caller's transaction. Never call it
// outside a transaction; an audit row without its mutation is as wrong as a
// mutation without its audit row.
func (r *Recorder) Record(ctx context.Context, tx pgx.Tx, tenantID, action, actor, entityID, entityType string, payload interface{}) error {
	var payloadJSON json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal audit payload: %w", err)
		}
		payloadJSON = data
	}

	log := &audit.Log{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Action:      action,
		Actor:       actor,
		EntityID:    entityID,
		EntityType:  entityType,
		PayloadJSON: payloadJSON,
		CreatedAt:   time.Now(),
	}

	return r.auditRepo.WithTx(tx).Append(ctx, log)
}

// List returns audit rows newest first, cursor-paginated
func (r *Recorder) List(ctx context.Context, cursorStr string, take int) (*shared.Page[*audit.Log], error) {
	cursor, err := shared.DecodeCursor(cursorStr)
	if err != nil {
		return nil, err
	}

	logs, err := r.auditRepo.List(ctx, cursor, take+1)
	if err != nil {
		return nil, err
	}

	page := shared.NewPage(logs, take, func(l *audit.Log) shared.Cursor {
		return shared.Cursor{CreatedAt: l.CreatedAt, ID: l.ID}
	})
	return &page, nil
}

// CountByEntity counts the audit rows recorded against one entity
func (r *Recorder) CountByEntity(ctx context.Context, entityID string) (int64, error) {
	return r.auditRepo.CountByEntity(ctx, entityID)
}
