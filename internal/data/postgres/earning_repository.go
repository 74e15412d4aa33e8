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

	"github.com/platform-finance-ledger/internal/domain/earning"
	"github.com/platform-finance-ledger/internal/platform/persistence"
)

// EarningRepository implements the earning.Repository interface for PostgreSQL
type EarningRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewEarningRepository creates a new PostgreSQL earning repository
func NewEarningRepository(logger *slog.Logger, db *persistence.PostgresDB) earning.Repository {
	return &EarningRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so the release state flip
// commits atomically with the release posting.
func (r *EarningRepository) WithTx(tx pgx.Tx) earning.Repository {
	return &EarningRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const earningColumns = `id, seller_company_id, shipment_id, gross_amount, commission_amount, chargeback_amount, net_amount, currency, status, expected_clear_date, released_at, created_at, updated_at`

// Create stores a new seller earning. The shipment_id unique constraint
// guarantees one earning per shipment.
func (r *EarningRepository) Create(ctx context.Context, e *earning.SellerEarning) error {
	query := `
		INSERT INTO seller_earnings (id, seller_company_id, shipment_id, gross_amount, commission_amount, chargeback_amount, net_amount, currency, status, expected_clear_date, released_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.querier.Exec(ctx, query,
		e.ID,
		e.SellerCompanyID,
		e.ShipmentID,
		e.GrossAmount,
		e.CommissionAmount,
		e.ChargebackAmount,
		e.NetAmount,
		e.Currency,
		e.Status,
		e.ExpectedClearDate,
		e.ReleasedAt,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create seller earning",
			"seller_company_id", e.SellerCompanyID,
			"shipment_id", e.ShipmentID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create seller earning: %w", err)
	}

	return nil
}

// GetByID retrieves a seller earning
func (r *EarningRepository) GetByID(ctx context.Context, id uuid.UUID) (*earning.SellerEarning, error) {
	query := `
		SELECT ` + earningColumns + `
		FROM seller_earnings
		WHERE id = $1
	`

	return r.getEarning(ctx, query, id)
}

// GetByShipmentID retrieves the earning backing a shipment
func (r *EarningRepository) GetByShipmentID(ctx context.Context, shipmentID uuid.UUID) (*earning.SellerEarning, error) {
	query := `
		SELECT ` + earningColumns + `
		FROM seller_earnings
		WHERE shipment_id = $1
	`

	return r.getEarning(ctx, query, shipmentID)
}

// GetForUpdate loads an earning under a row lock for state transitions
func (r *EarningRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*earning.SellerEarning, error) {
	query := `
		SELECT ` + earningColumns + `
		FROM seller_earnings
		WHERE id = $1
		FOR UPDATE
	`

	return r.getEarning(ctx, query, id)
}

func (r *EarningRepository) getEarning(ctx context.Context, query string, arg uuid.UUID) (*earning.SellerEarning, error) {
	var e earning.SellerEarning
	err := r.querier.QueryRow(ctx, query, arg).Scan(
		&e.ID,
		&e.SellerCompanyID,
		&e.ShipmentID,
		&e.GrossAmount,
		&e.CommissionAmount,
		&e.ChargebackAmount,
		&e.NetAmount,
		&e.Currency,
		&e.Status,
		&e.ExpectedClearDate,
		&e.ReleasedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, earning.ErrEarningNotFound{EarningID: arg}
		}
		r.logger.Error("Failed to get seller earning", "id", arg.String(), "error", err)
		return nil, fmt.Errorf("failed to get seller earning: %w", err)
	}

	return &e, nil
}

// SetExpectedClearDate force-sets the release eligibility gate
func (r *EarningRepository) SetExpectedClearDate(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE seller_earnings
		SET expected_clear_date = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, at, id)
	if err != nil {
		r.logger.Error("Failed to set earning clear date", "id", id.String(), "error", err)
		return fmt.Errorf("failed to set earning clear date: %w", err)
	}

	if result.RowsAffected() == 0 {
		return earning.ErrEarningNotFound{EarningID: id}
	}

	return nil
}

// MarkReleased flips the earning to its terminal RELEASED state. The status
// guard makes the flip a no-op if a concurrent release won.
func (r *EarningRepository) MarkReleased(ctx context.Context, id uuid.UUID, releasedAt time.Time) error {
	query := `
		UPDATE seller_earnings
		SET status = $1, released_at = $2, updated_at = NOW()
		WHERE id = $3 AND status <> $1
	`

	result, err := r.querier.Exec(ctx, query, earning.StatusReleased, releasedAt, id)
	if err != nil {
		r.logger.Error("Failed to mark earning released", "id", id.String(), "error", err)
		return fmt.Errorf("failed to mark earning released: %w", err)
	}

	if result.RowsAffected() == 0 {
		return earning.ErrAlreadyReleased{EarningID: id}
	}

	return nil
}

// UpdateChargeback refreshes the chargeback/net reporting cache
func (r *EarningRepository) UpdateChargeback(ctx context.Context, id uuid.UUID, chargebackAmount, netAmount decimal.Decimal) error {
	query := `
		UPDATE seller_earnings
		SET chargeback_amount = $1, net_amount = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, chargebackAmount, netAmount, id)
	if err != nil {
		r.logger.Error("Failed to update earning chargeback", "id", id.String(), "error", err)
		return fmt.Errorf("failed to update earning chargeback: %w", err)
	}

	if result.RowsAffected() == 0 {
		return earning.ErrEarningNotFound{EarningID: id}
	}

	return nil
}

// ListReleasable returns earnings whose clear date has passed and whose
// status is not yet RELEASED, oldest first so the longest-waiting sellers
// release first.
func (r *EarningRepository) ListReleasable(ctx context.Context, now time.Time, limit int) ([]*earning.SellerEarning, error) {
	query := `
		SELECT ` + earningColumns + `
		FROM seller_earnings
		WHERE status <> $1 AND expected_clear_date IS NOT NULL AND expected_clear_date <= $2
		ORDER BY expected_clear_date ASC, id ASC
		LIMIT $3
	`

	rows, err := r.querier.Query(ctx, query, earning.StatusReleased, now, limit)
	if err != nil {
		r.logger.Error("Failed to list releasable earnings", "error", err)
		return nil, fmt.Errorf("failed to list releasable earnings: %w", err)
	}
	defer rows.Close()

	var earnings []*earning.SellerEarning
	for rows.Next() {
		var e earning.SellerEarning
		err := rows.Scan(
			&e.ID,
			&e.SellerCompanyID,
			&e.ShipmentID,
			&e.GrossAmount,
			&e.CommissionAmount,
			&e.ChargebackAmount,
			&e.NetAmount,
			&e.Currency,
			&e.Status,
			&e.ExpectedClearDate,
			&e.ReleasedAt,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan seller earning: %w", err)
		}
		earnings = append(earnings, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over seller earnings: %w", err)
	}

	return earnings, nil
}
