package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/platform-finance-ledger/internal/admin_api/middleware"
	"github.com/platform-finance-ledger/internal/domain/commission"
	"github.com/platform-finance-ledger/internal/finance/commissionsvc"
)

// CommissionHandler handles HTTP requests for commission plan management
type CommissionHandler struct {
	commissionService commissionsvc.Service
	logger            *slog.Logger
}

// NewCommissionHandler creates a new commission handler
func NewCommissionHandler(logger *slog.Logger, commissionService commissionsvc.Service) *CommissionHandler {
	return &CommissionHandler{
		commissionService: commissionService,
		logger:            logger,
	}
}

// Create creates a commission plan with its rate rules
func (h *CommissionHandler) Create(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	input := &commissionsvc.PlanInput{
		Name:         req.Name,
		Currency:     req.Currency,
		RoundingMode: commission.RoundingMode(req.RoundingMode),
		Precision:    req.Precision,
		TaxInclusive: req.TaxInclusive,
		CompanyID:    req.CompanyID,
		IsDefault:    req.IsDefault,
	}
	for _, r := range req.Rules {
		input.Rules = append(input.Rules, commissionsvc.RuleInput{
			MatchType:      commission.MatchType(r.MatchType),
			Category:       r.Category,
			Brand:          r.Brand,
			RatePercentage: r.RatePercentage,
			FixedFee:       r.FixedFee,
			Priority:       r.Priority,
		})
	}

	plan, err := h.commissionService.CreatePlan(c.Request.Context(), middleware.GetAdminID(c), input)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	RespondCreated(c, plan)
}

// Activate promotes a plan to the default of its scope
func (h *CommissionHandler) Activate(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid plan ID")
		return
	}

	plan, err := h.commissionService.ActivatePlan(c.Request.Context(), middleware.GetAdminID(c), planID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	RespondOK(c, plan)
}

// List returns commission plans newest first
func (h *CommissionHandler) List(c *gin.Context) {
	var params ListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	page, err := h.commissionService.ListPlans(c.Request.Context(), params.Cursor, params.Take)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	RespondOK(c, page)
}

// Resolve returns the plan effective for a seller company
func (h *CommissionHandler) Resolve(c *gin.Context) {
	sellerCompanyID := c.Param("companyId")
	if sellerCompanyID == "" {
		RespondBadRequest(c, "Missing company ID")
		return
	}

	plan, err := h.commissionService.ResolveActivePlan(c.Request.Context(), sellerCompanyID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	RespondOK(c, plan)
}
