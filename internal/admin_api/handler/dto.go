package handler

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// IngestInvoiceRequest is a carrier invoice delivered over the webhook endpoint
type IngestInvoiceRequest struct {
	CarrierID   string              `json:"carrier_id" binding:"required"`
	InvoiceNo   string              `json:"invoice_no" binding:"required"`
	PeriodStart time.Time           `json:"period_start"`
	PeriodEnd   time.Time           `json:"period_end"`
	Currency    string              `json:"currency"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	Lines       []IngestLineRequest `json:"lines" binding:"required,min=1"`
}

// IngestLineRequest is one charge line in an ingestion payload
type IngestLineRequest struct {
	TrackingNo   string          `json:"tracking_no" binding:"required"`
	ChargeAmount decimal.Decimal `json:"charge_amount"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
	ServiceLevel string          `json:"service_level,omitempty"`
}

// MatchLineRequest binds a shipping line to a shipment by admin override
type MatchLineRequest struct {
	ShipmentID string `json:"shipment_id" binding:"required,uuid"`
}

// DisputeLineRequest marks a shipping line disputed
type DisputeLineRequest struct {
	ReasonCode string `json:"reason_code" binding:"required"`
	Note       string `json:"note,omitempty"`
}

// CreatePlanRequest creates a commission plan with its rate rules
type CreatePlanRequest struct {
	Name         string              `json:"name" binding:"required"`
	Currency     string              `json:"currency"`
	RoundingMode string              `json:"rounding_mode" binding:"required,oneof=HALF_UP UP DOWN"`
	Precision    int32               `json:"precision" binding:"min=0"`
	TaxInclusive bool                `json:"tax_inclusive"`
	CompanyID    *string             `json:"company_id,omitempty"`
	IsDefault    bool                `json:"is_default"`
	Rules        []PlanRuleRequest   `json:"rules" binding:"required,min=1"`
}

// PlanRuleRequest is one rate rule in a plan creation payload
type PlanRuleRequest struct {
	MatchType      string          `json:"match_type" binding:"required,oneof=DEFAULT CATEGORY BRAND"`
	Category       string          `json:"category,omitempty"`
	Brand          string          `json:"brand,omitempty"`
	RatePercentage decimal.Decimal `json:"rate_percentage"`
	FixedFee       decimal.Decimal `json:"fixed_fee"`
	Priority       int32           `json:"priority"`
}

// ReleaseOverrideRequest forces an earning's clear date for immediate release
type ReleaseOverrideRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ListParams are the cursor pagination parameters shared by list endpoints
type ListParams struct {
	Cursor string `form:"cursor"`
	Take   int    `form:"take,default=20" binding:"min=1,max=100"`
}

// InvoiceDetailResponse is an invoice joined with its redacted raw payload
type InvoiceDetailResponse struct {
	Invoice    interface{}     `json:"invoice"`
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`
}
