package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/platform-finance-ledger/internal/admin_api/middleware"
	"github.com/platform-finance-ledger/internal/finance/earningsvc"
)

// EarningHandler handles HTTP requests for seller earning release
type EarningHandler struct {
	earningService earningsvc.Service
	logger         *slog.Logger
}

// NewEarningHandler creates a new earning handler
func NewEarningHandler(logger *slog.Logger, earningService earningsvc.Service) *EarningHandler {
	return &EarningHandler{
		earningService: earningService,
		logger:         logger,
	}
}

// Get returns one earning by id
func (h *EarningHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid earning ID")
		return
	}

	e, err := h.earningService.GetEarning(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	RespondOK(c, e)
}

// Override forces an earning's clear date so the release engine picks it up.
// It does not release the earning itself.
func (h *EarningHandler) Override(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid earning ID")
		return
	}

	var req ReleaseOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	e, err := h.earningService.AdminOverrideRelease(c.Request.Context(), middleware.GetAdminID(c), id, req.Reason)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	RespondOK(c, e)
}

// Release executes the release posting for one eligible earning
func (h *EarningHandler) Release(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid earning ID")
		return
	}

	e, err := h.earningService.ReleaseSingleEarning(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	RespondOK(c, e)
}
