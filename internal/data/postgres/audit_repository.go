package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/platform-finance-ledger/internal/domain/audit"
	"github.com/platform-finance-ledger/internal/domain/shared"
	"github.com/platform-finance-ledger/internal/platform/persistence"
)

// AuditRepository implements the audit.Repository interface for PostgreSQL
type AuditRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewAuditRepository creates a new PostgreSQL audit repository
func NewAuditRepository(logger *slog.Logger, db *persistence.PostgresDB) audit.Repository {
	return &AuditRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction. Audit rows commit with the
// admin mutation they describe, never separately.
func (r *AuditRepository) WithTx(tx pgx.Tx) audit.Repository {
	return &AuditRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Append inserts one audit row
func (r *AuditRepository) Append(ctx context.Context, log *audit.Log) error {
	query := `
		INSERT INTO finance_audit_logs (id, tenant_id, action, actor, entity_id, entity_type, payload_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.querier.Exec(ctx, query,
		log.ID,
		log.TenantID,
		log.Action,
		log.Actor,
		log.EntityID,
		log.EntityType,
		log.PayloadJSON,
		log.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append audit log", "action", log.Action, "entity_id", log.EntityID, "error", err)
		return fmt.Errorf("failed to append audit log: %w", err)
	}

	return nil
}

// List returns audit rows newest first, cursor-paginated
func (r *AuditRepository) List(ctx context.Context, cursor *shared.Cursor, limit int) ([]*audit.Log, error) {
	query := `
		SELECT id, tenant_id, action, actor, entity_id, entity_type, payload_json, created_at
		FROM finance_audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	args := []interface{}{limit}

	if cursor != nil {
		query = `
		SELECT id, tenant_id, action, actor, entity_id, entity_type, payload_json, created_at
		FROM finance_audit_logs
		WHERE (created_at, id) < ($1, $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`
		args = []interface{}{cursor.CreatedAt, cursor.ID, limit}
	}

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list audit logs", "error", err)
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*audit.Log
	for rows.Next() {
		var l audit.Log
		err := rows.Scan(
			&l.ID,
			&l.TenantID,
			&l.Action,
			&l.Actor,
			&l.EntityID,
			&l.EntityType,
			&l.PayloadJSON,
			&l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over audit logs: %w", err)
	}

	return logs, nil
}

// CountByEntity counts the audit rows recorded against one entity
func (r *AuditRepository) CountByEntity(ctx context.Context, entityID string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM finance_audit_logs
		WHERE entity_id = $1
	`

	var count int64
	err := r.querier.QueryRow(ctx, query, entityID).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count audit logs", "entity_id", entityID, "error", err)
		return 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	return count, nil
}
