package negotiator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Decision is the outcome of weighing one item's prices against the budget.
type Decision int

const (
	_ Decision = iota
	// Buy: the market price is within the markup and fits the remaining budget.
	Buy
	// SkipPriceTooHigh: the market price is above base*(1+markup).
	SkipPriceTooHigh
	// SkipBudgetExceeded: acceptable price, but not enough budget left.
	SkipBudgetExceeded
)

func (d Decision) String() string {
	switch d {
	case Buy:
		return "buy"
	case SkipPriceTooHigh:
		return "skip_price_too_high"
	case SkipBudgetExceeded:
		return "skip_budget_exceeded"
	default:
		return "none"
	}
}

func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Decision) UnmarshalText(b []byte) error {
	switch string(b) {
	case "buy":
		*d = Buy
	case "skip_price_too_high":
		*d = SkipPriceTooHigh
	case "skip_budget_exceeded":
		*d = SkipBudgetExceeded
	case "none", "":
		*d = 0
	default:
		return fmt.Errorf("unknown decision %q", string(b))
	}
	return nil
}

var defaultMaxMarkup = decimal.RequireFromString("0.10")

// Rule holds the buy threshold. MaxMarkup is a fraction: 0.10 allows a market
// price up to 10% above the reference price.
type Rule struct {
	MaxMarkup decimal.Decimal
}

func DefaultRule() Rule {
	return Rule{MaxMarkup: defaultMaxMarkup}
}

// Threshold is the highest acceptable market price for a reference price.
func (r Rule) Threshold(base decimal.Decimal) decimal.Decimal {
	return base.Mul(decimal.NewFromInt(1).Add(r.MaxMarkup))
}

// Decide applies the price check first, then the budget check. Both limits
// are inclusive: a price exactly at the threshold, or a purchase that spends
// the budget down to exactly zero, is a Buy.
func (r Rule) Decide(base, current, budget, spent decimal.Decimal) Decision {
	if current.GreaterThan(r.Threshold(base)) {
		return SkipPriceTooHigh
	}
	if spent.Add(current).GreaterThan(budget) {
		return SkipBudgetExceeded
	}
	return Buy
}

// Decide applies DefaultRule.
func Decide(base, current, budget, spent decimal.Decimal) Decision {
	return DefaultRule().Decide(base, current, budget, spent)
}
