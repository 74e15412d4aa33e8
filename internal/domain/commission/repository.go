package commission

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/platform-finance-ledger/internal/domain/shared"
)

// Repository defines commission plan persistence operations.
type Repository interface {
	CreatePlan(ctx context.Context, plan *Plan) error
	CreateRules(ctx context.Context, rules []*Rule) error
	GetPlanByID(ctx context.Context, id uuid.UUID) (*Plan, error)

	// DemoteDefaults clears isDefault on every plan in the scope except the
	// excluded one. companyID nil targets the global scope.
	DemoteDefaults(ctx context.Context, companyID *string, exclude uuid.UUID) error
	SetDefault(ctx context.Context, id uuid.UUID, isDefault bool) error

	// FindActiveDefault resolves the plan effective for a seller: the
	// seller-scoped default when present, otherwise the global default.
	FindActiveDefault(ctx context.Context, sellerCompanyID string) (*Plan, error)
	ListPlans(ctx context.Context, cursor *shared.Cursor, limit int) ([]*Plan, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrPlanNotFound indicates a missing commission plan
type ErrPlanNotFound struct {
	PlanID uuid.UUID
}

func (e ErrPlanNotFound) Error() string {
	return "commission plan not found: " + e.PlanID.String()
}

// ErrNoActivePlan indicates no default plan exists for the seller or globally
type ErrNoActivePlan struct {
	SellerCompanyID string
}

func (e ErrNoActivePlan) Error() string {
	return "no active commission plan for seller " + e.SellerCompanyID + " or platform"
}
