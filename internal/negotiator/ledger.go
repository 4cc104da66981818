package negotiator

import "github.com/shopspring/decimal"

// Ledger is the run state threaded through each item step.
// Methods return new values; a Ledger held by a caller never changes.
type Ledger struct {
	Budget    decimal.Decimal
	Spent     decimal.Decimal
	Purchased []string
}

func NewLedger(budget decimal.Decimal) Ledger {
	return Ledger{Budget: budget, Spent: decimal.Zero}
}

func (l Ledger) Remaining() decimal.Decimal {
	return l.Budget.Sub(l.Spent)
}

// Record books a purchase. The caller has already checked it fits.
func (l Ledger) Record(item string, price decimal.Decimal) Ledger {
	purchased := make([]string, len(l.Purchased), len(l.Purchased)+1)
	copy(purchased, l.Purchased)
	return Ledger{
		Budget:    l.Budget,
		Spent:     l.Spent.Add(price),
		Purchased: append(purchased, item),
	}
}
