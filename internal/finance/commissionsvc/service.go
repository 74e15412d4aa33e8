// Package commissionsvc manages versioned commission plans and the
// single-default-per-scope invariant. The invariant is procedural, not a
// unique constraint: every path that promotes a plan demotes the scope's
// other defaults first, inside the same transaction.
package commissionsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/platform-finance-ledger/internal/domain/audit"
	"github.com/platform-finance-ledger/internal/domain/commission"
	"github.com/platform-finance-ledger/internal/domain/shared"
	"github.com/platform-finance-ledger/internal/finance/auditsvc"
	"github.com/platform-finance-ledger/internal/finance/idempotency"
)

// PlanInput is the payload for creating a commission plan
type PlanInput struct {
	Name         string                  `json:"name"`
	Currency     string                  `json:"currency"`
	RoundingMode commission.RoundingMode `json:"rounding_mode"`
	Precision    int32                   `json:"precision"`
	TaxInclusive bool                    `json:"tax_inclusive"`
	CompanyID    *string                 `json:"company_id,omitempty"`
	IsDefault    bool                    `json:"is_default"`
	Rules        []RuleInput             `json:"rules"`
}

// RuleInput is one rate rule in a plan creation payload
type RuleInput struct {
	MatchType      commission.MatchType `json:"match_type"`
	Category       string               `json:"category,omitempty"`
	Brand          string               `json:"brand,omitempty"`
	RatePercentage decimal.Decimal      `json:"rate_percentage"`
	FixedFee       decimal.Decimal      `json:"fixed_fee"`
	Priority       int32                `json:"priority"`
}

// Validate checks the payload before any database work
func (in *PlanInput) Validate() error {
	if in.Name == "" {
		return errors.New("plan name is required")
	}
	if len(in.Rules) == 0 {
		return errors.New("plan requires at least one rule")
	}
	switch in.RoundingMode {
	case commission.RoundHalfUp, commission.RoundUp, commission.RoundDown:
	default:
		return fmt.Errorf("unknown rounding mode: %s", in.RoundingMode)
	}
	if in.Precision < 0 {
		return errors.New("precision cannot be negative")
	}
	return nil
}

// Service defines commission plan operations
type Service interface {
	// CreatePlan inserts a plan with its rules. Time-scoped idempotency key:
	// each call is a distinct event, not deduplicated across calls.
	CreatePlan(ctx context.Context, adminID string, input *PlanInput) (*commission.Plan, error)

	// ActivatePlan promotes a plan to the default of its scope.
	// Idempotent per plan; a replay returns idempotency.ErrAlreadySucceeded.
	ActivatePlan(ctx context.Context, adminID string, planID uuid.UUID) (*commission.Plan, error)

	ListPlans(ctx context.Context, cursor string, take int) (*shared.Page[*commission.Plan], error)

	// ResolveActivePlan returns the plan effective for a seller: the
	// seller-scoped default, falling back to the global default.
	ResolveActivePlan(ctx context.Context, sellerCompanyID string) (*commission.Plan, error)
}

// ServiceImpl implements the Service interface
type ServiceImpl struct {
	idem           *idempotency.Manager
	commissionRepo commission.Repository
	recorder       *auditsvc.Recorder
	logger         *slog.Logger
}

// NewService creates a new commission plan service
func NewService(logger *slog.Logger, idem *idempotency.Manager, commissionRepo commission.Repository, recorder *auditsvc.Recorder) Service {
	return &ServiceImpl{
		idem:           idem,
		commissionRepo: commissionRepo,
		recorder:       recorder,
		logger:         logger,
	}
}

// CreatePlan inserts a plan and its rules, demoting any existing default in
// the same scope first when the new plan is itself a default.
func (s *ServiceImpl) CreatePlan(ctx context.Context, adminID string, input *PlanInput) (*commission.Plan, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("ADMIN_CREATE_COMMISSION_PLAN:%s:%d", adminID, time.Now().UnixMilli())

	return idempotency.Run(ctx, s.idem, key, "ADMIN_CREATE_COMMISSION_PLAN", shared.PlatformTenant, func(tx pgx.Tx) (*commission.Plan, error) {
		repo := s.commissionRepo.WithTx(tx)
		now := time.Now()

		plan := &commission.Plan{
			ID:           uuid.New(),
			Name:         input.Name,
			Currency:     input.Currency,
			RoundingMode: input.RoundingMode,
			Precision:    input.Precision,
			TaxInclusive: input.TaxInclusive,
			CompanyID:    input.CompanyID,
			IsDefault:    input.IsDefault,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		// Demote before inserting so the scope never holds two defaults.
		if input.IsDefault {
			if err := repo.DemoteDefaults(ctx, input.CompanyID, plan.ID); err != nil {
				return nil, err
			}
		}

		if err := repo.CreatePlan(ctx, plan); err != nil {
			return nil, err
		}

		rules := make([]*commission.Rule, 0, len(input.Rules))
		for _, in := range input.Rules {
			rules = append(rules, &commission.Rule{
				ID:             uuid.New(),
				PlanID:         plan.ID,
				MatchType:      in.MatchType,
				Category:       in.Category,
				Brand:          in.Brand,
				RatePercentage: in.RatePercentage,
				FixedFee:       in.FixedFee,
				Priority:       in.Priority,
				CreatedAt:      now,
			})
		}
		if err := repo.CreateRules(ctx, rules); err != nil {
			return nil, err
		}
		plan.Rules = rules

		err := s.recorder.Record(ctx, tx, shared.PlatformTenant, audit.ActionCommissionPlanCreated, adminID, plan.ID.String(), "COMMISSION_PLAN", map[string]interface{}{
			"name":       plan.Name,
			"is_default": plan.IsDefault,
			"scope":      plan.Scope(),
			"rule_count": len(rules),
		})
		if err != nil {
			return nil, err
		}

		s.logger.Info("Commission plan created", "plan_id", plan.ID.String(), "scope", plan.Scope(), "is_default", plan.IsDefault)
		return plan, nil
	})
}

// ActivatePlan demotes the scope's other defaults and promotes the target
func (s *ServiceImpl) ActivatePlan(ctx context.Context, adminID string, planID uuid.UUID) (*commission.Plan, error) {
	key := fmt.Sprintf("ADMIN_ACTIVATE_PLAN:%s", planID)

	return idempotency.Run(ctx, s.idem, key, "ADMIN_ACTIVATE_PLAN", shared.PlatformTenant, func(tx pgx.Tx) (*commission.Plan, error) {
		repo := s.commissionRepo.WithTx(tx)

		plan, err := repo.GetPlanByID(ctx, planID)
		if err != nil {
			return nil, err
		}

		if err := repo.DemoteDefaults(ctx, plan.CompanyID, plan.ID); err != nil {
			return nil, err
		}
		if err := repo.SetDefault(ctx, plan.ID, true); err != nil {
			return nil, err
		}
		plan.IsDefault = true

		err = s.recorder.Record(ctx, tx, shared.PlatformTenant, audit.ActionCommissionPlanActivated, adminID, plan.ID.String(), "COMMISSION_PLAN", map[string]interface{}{
			"scope": plan.Scope(),
		})
		if err != nil {
			return nil, err
		}

		s.logger.Info("Commission plan activated", "plan_id", plan.ID.String(), "scope", plan.Scope())
		return plan, nil
	})
}

// ListPlans returns plans newest first, cursor-paginated
func (s *ServiceImpl) ListPlans(ctx context.Context, cursorStr string, take int) (*shared.Page[*commission.Plan], error) {
	cursor, err := shared.DecodeCursor(cursorStr)
	if err != nil {
		return nil, err
	}

	plans, err := s.commissionRepo.ListPlans(ctx, cursor, take+1)
	if err != nil {
		return nil, err
	}

	page := shared.NewPage(plans, take, func(p *commission.Plan) shared.Cursor {
		return shared.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return &page, nil
}

// ResolveActivePlan returns the plan effective for a seller
func (s *ServiceImpl) ResolveActivePlan(ctx context.Context, sellerCompanyID string) (*commission.Plan, error) {
	return s.commissionRepo.FindActiveDefault(ctx, sellerCompanyID)
}
