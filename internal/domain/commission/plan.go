// Package commission defines versioned, scoped commission-rate configuration.
// A plan's scope is its company id; a nil company id means platform-wide.
// At most one plan per scope carries isDefault=true, enforced procedurally by
// demoting before promoting inside one transaction.
package commission

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RoundingMode controls how computed commission amounts are rounded
type RoundingMode string

const (
	RoundHalfUp RoundingMode = "HALF_UP"
	RoundUp     RoundingMode = "UP"
	RoundDown   RoundingMode = "DOWN"
)

// MatchType selects which order lines a rule applies to
type MatchType string

const (
	MatchDefault  MatchType = "DEFAULT"
	MatchCategory MatchType = "CATEGORY"
	MatchBrand    MatchType = "BRAND"
)

// Plan is a scoped rate table. CompanyID nil = global scope.
type Plan struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	Currency     string       `json:"currency"`
	RoundingMode RoundingMode `json:"rounding_mode"`
	Precision    int32        `json:"precision"`
	TaxInclusive bool         `json:"tax_inclusive"`
	CompanyID    *string      `json:"company_id,omitempty"`
	IsDefault    bool         `json:"is_default"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`

	Rules []*Rule `json:"rules,omitempty"`
}

// Scope returns the plan's scope key; the global scope is the empty string.
func (p *Plan) Scope() string {
	if p.CompanyID == nil {
		return ""
	}
	return *p.CompanyID
}

// Rule is one rate line inside a plan. Higher priority wins on overlap.
type Rule struct {
	ID             uuid.UUID       `json:"id"`
	PlanID         uuid.UUID       `json:"plan_id"`
	MatchType      MatchType       `json:"match_type"`
	Category       string          `json:"category,omitempty"`
	Brand          string          `json:"brand,omitempty"`
	RatePercentage decimal.Decimal `json:"rate_percentage"`
	FixedFee       decimal.Decimal `json:"fixed_fee"`
	Priority       int32           `json:"priority"`
	CreatedAt      time.Time       `json:"created_at"`
}
