package commissionsvc

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/platform-finance-ledger/internal/domain/commission"
)

// ErrNoMatchingRule indicates the plan has no rule applying to the line
var ErrNoMatchingRule = errors.New("no matching commission rule")

var oneHundred = decimal.NewFromInt(100)

// ResolveRule picks the rule applying to a line. Rules must arrive sorted by
// priority descending; the first specific (category/brand) match wins, with
// the highest-priority DEFAULT rule as fallback.
func ResolveRule(rules []*commission.Rule, category, brand string) (*commission.Rule, error) {
	var fallback *commission.Rule

	for _, rule := range rules {
		switch rule.MatchType {
		case commission.MatchCategory:
			if category != "" && rule.Category == category {
				return rule, nil
			}
		case commission.MatchBrand:
			if brand != "" && rule.Brand == brand {
				return rule, nil
			}
		case commission.MatchDefault:
			if fallback == nil {
				fallback = rule
			}
		}
	}

	if fallback == nil {
		return nil, ErrNoMatchingRule
	}
	return fallback, nil
}

// Calculate computes the commission on an amount: rate percentage of the
// amount plus the fixed fee, rounded at the plan's precision.
func Calculate(amount decimal.Decimal, rule *commission.Rule, mode commission.RoundingMode, precision int32) decimal.Decimal {
	c := amount.Mul(rule.RatePercentage).Div(oneHundred).Add(rule.FixedFee)

	switch mode {
	case commission.RoundUp:
		return c.RoundUp(precision)
	case commission.RoundDown:
		return c.RoundDown(precision)
	default:
		return c.Round(precision)
	}
}
