package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/platform-finance-ledger/internal/domain/commission"
	"github.com/platform-finance-ledger/internal/domain/shared"
	"github.com/platform-finance-ledger/internal/platform/persistence"
)

// CommissionRepository implements the commission.Repository interface for PostgreSQL
type CommissionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewCommissionRepository creates a new PostgreSQL commission repository
func NewCommissionRepository(logger *slog.Logger, db *persistence.PostgresDB) commission.Repository {
	return &CommissionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so default demotion and
// promotion share one atomic boundary.
func (r *CommissionRepository) WithTx(tx pgx.Tx) commission.Repository {
	return &CommissionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const planColumns = `id, name, currency, rounding_mode, precision, tax_inclusive, company_id, is_default, created_at, updated_at`

// CreatePlan stores a new commission plan
func (r *CommissionRepository) CreatePlan(ctx context.Context, plan *commission.Plan) error {
	query := `
		INSERT INTO commission_plans (id, name, currency, rounding_mode, precision, tax_inclusive, company_id, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.querier.Exec(ctx, query,
		plan.ID,
		plan.Name,
		plan.Currency,
		plan.RoundingMode,
		plan.Precision,
		plan.TaxInclusive,
		plan.CompanyID,
		plan.IsDefault,
		plan.CreatedAt,
		plan.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create commission plan", "name", plan.Name, "error", err)
		return fmt.Errorf("failed to create commission plan: %w", err)
	}

	return nil
}

// CreateRules stores a plan's rate rules
func (r *CommissionRepository) CreateRules(ctx context.Context, rules []*commission.Rule) error {
	query := `
		INSERT INTO commission_rules (id, plan_id, match_type, category, brand, rate_percentage, fixed_fee, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, rule := range rules {
		_, err := r.querier.Exec(ctx, query,
			rule.ID,
			rule.PlanID,
			rule.MatchType,
			rule.Category,
			rule.Brand,
			rule.RatePercentage,
			rule.FixedFee,
			rule.Priority,
			rule.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create commission rule", "plan_id", rule.PlanID.String(), "error", err)
			return fmt.Errorf("failed to create commission rule: %w", err)
		}
	}

	return nil
}

// GetPlanByID retrieves a plan with its rules
func (r *CommissionRepository) GetPlanByID(ctx context.Context, id uuid.UUID) (*commission.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM commission_plans
		WHERE id = $1
	`

	plan, err := scanPlanRow(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, commission.ErrPlanNotFound{PlanID: id}
		}
		r.logger.Error("Failed to get commission plan", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get commission plan: %w", err)
	}

	rules, err := r.getRulesByPlan(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	plan.Rules = rules

	return plan, nil
}

// DemoteDefaults clears isDefault on every other plan in the scope. A nil
// companyID targets the global scope.
func (r *CommissionRepository) DemoteDefaults(ctx context.Context, companyID *string, exclude uuid.UUID) error {
	query := `
		UPDATE commission_plans
		SET is_default = FALSE, updated_at = NOW()
		WHERE company_id = $1 AND is_default = TRUE AND id <> $2
	`
	if companyID == nil {
		query = `
		UPDATE commission_plans
		SET is_default = FALSE, updated_at = NOW()
		WHERE company_id IS NULL AND is_default = TRUE AND id <> $1
	`
		_, err := r.querier.Exec(ctx, query, exclude)
		if err != nil {
			r.logger.Error("Failed to demote default commission plans", "scope", "global", "error", err)
			return fmt.Errorf("failed to demote default commission plans: %w", err)
		}
		return nil
	}

	_, err := r.querier.Exec(ctx, query, *companyID, exclude)
	if err != nil {
		r.logger.Error("Failed to demote default commission plans", "scope", *companyID, "error", err)
		return fmt.Errorf("failed to demote default commission plans: %w", err)
	}

	return nil
}

// SetDefault flips a single plan's default flag
func (r *CommissionRepository) SetDefault(ctx context.Context, id uuid.UUID, isDefault bool) error {
	query := `
		UPDATE commission_plans
		SET is_default = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, isDefault, id)
	if err != nil {
		r.logger.Error("Failed to set commission plan default flag", "id", id.String(), "error", err)
		return fmt.Errorf("failed to set commission plan default flag: %w", err)
	}

	if result.RowsAffected() == 0 {
		return commission.ErrPlanNotFound{PlanID: id}
	}

	return nil
}

// FindActiveDefault resolves the effective plan for a seller: the
// seller-scoped default first, the global default as fallback.
func (r *CommissionRepository) FindActiveDefault(ctx context.Context, sellerCompanyID string) (*commission.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM commission_plans
		WHERE is_default = TRUE AND (company_id = $1 OR company_id IS NULL)
		ORDER BY company_id NULLS LAST
		LIMIT 1
	`

	plan, err := scanPlanRow(r.querier.QueryRow(ctx, query, sellerCompanyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, commission.ErrNoActivePlan{SellerCompanyID: sellerCompanyID}
		}
		r.logger.Error("Failed to find active commission plan", "seller_company_id", sellerCompanyID, "error", err)
		return nil, fmt.Errorf("failed to find active commission plan: %w", err)
	}

	rules, err := r.getRulesByPlan(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	plan.Rules = rules

	return plan, nil
}

// ListPlans returns plans newest first, cursor-paginated
func (r *CommissionRepository) ListPlans(ctx context.Context, cursor *shared.Cursor, limit int) ([]*commission.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM commission_plans
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	args := []interface{}{limit}

	if cursor != nil {
		query = `
		SELECT ` + planColumns + `
		FROM commission_plans
		WHERE (created_at, id) < ($1, $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`
		args = []interface{}{cursor.CreatedAt, cursor.ID, limit}
	}

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list commission plans", "error", err)
		return nil, fmt.Errorf("failed to list commission plans: %w", err)
	}
	defer rows.Close()

	var plans []*commission.Plan
	for rows.Next() {
		plan, err := scanPlanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commission plan: %w", err)
		}
		plans = append(plans, plan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over commission plans: %w", err)
	}

	return plans, nil
}

func (r *CommissionRepository) getRulesByPlan(ctx context.Context, planID uuid.UUID) ([]*commission.Rule, error) {
	query := `
		SELECT id, plan_id, match_type, category, brand, rate_percentage, fixed_fee, priority, created_at
		FROM commission_rules
		WHERE plan_id = $1
		ORDER BY priority DESC, created_at ASC
	`

	rows, err := r.querier.Query(ctx, query, planID)
	if err != nil {
		r.logger.Error("Failed to get commission rules", "plan_id", planID.String(), "error", err)
		return nil, fmt.Errorf("failed to get commission rules: %w", err)
	}
	defer rows.Close()

	var rules []*commission.Rule
	for rows.Next() {
		var rule commission.Rule
		err := rows.Scan(
			&rule.ID,
			&rule.PlanID,
			&rule.MatchType,
			&rule.Category,
			&rule.Brand,
			&rule.RatePercentage,
			&rule.FixedFee,
			&rule.Priority,
			&rule.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commission rule: %w", err)
		}
		rules = append(rules, &rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over commission rules: %w", err)
	}

	return rules, nil
}

func scanPlanRow(row pgx.Row) (*commission.Plan, error) {
	var plan commission.Plan
	err := row.Scan(
		&plan.ID,
		&plan.Name,
		&plan.Currency,
		&plan.RoundingMode,
		&plan.Precision,
		&plan.TaxInclusive,
		&plan.CompanyID,
		&plan.IsDefault,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &plan, nil
}
