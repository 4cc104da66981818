package negotiator

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// Status says how far an item got.
type Status string

const (
	StatusDecided   Status = "decided"
	StatusPeerError Status = "peer_error"
	StatusMalformed Status = "malformed"
	// StatusFailed marks the item whose error ended the run.
	StatusFailed Status = "failed"
)

// Outcome records what happened to one item.
type Outcome struct {
	Item         string           `json:"item"`
	Status       Status           `json:"status"`
	Decision     Decision         `json:"decision,omitempty"`
	BasePrice    *decimal.Decimal `json:"base_price,omitempty"`
	CurrentPrice *decimal.Decimal `json:"current_price,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// Summary is the result of one run.
type Summary struct {
	RunID     string          `json:"run_id"`
	Purchased []string        `json:"purchased"`
	Spent     decimal.Decimal `json:"spent"`
	Budget    decimal.Decimal `json:"budget"`
	Remaining decimal.Decimal `json:"remaining"`
	Outcomes  []Outcome       `json:"outcomes"`
	Aborted   bool            `json:"aborted,omitempty"`
}

func summarize(runID string, l Ledger, outcomes []Outcome, aborted bool) Summary {
	purchased := append([]string{}, l.Purchased...)
	return Summary{
		RunID:     runID,
		Purchased: purchased,
		Spent:     l.Spent,
		Budget:    l.Budget,
		Remaining: l.Remaining(),
		Outcomes:  outcomes,
		Aborted:   aborted,
	}
}

// WriteText prints the human-readable summary. Amounts are plain decimals
// with two places; currency is a label such as "IDR".
func (s Summary) WriteText(w io.Writer, currency string) error {
	var b strings.Builder
	if s.Aborted {
		b.WriteString("Run aborted before all items were evaluated.\n")
	}
	for _, o := range s.Outcomes {
		switch o.Status {
		case StatusDecided:
			fmt.Fprintf(&b, "  %-16s %-22s market %s, reference %s\n",
				o.Item, o.Decision, money(currency, deref(o.CurrentPrice)), money(currency, deref(o.BasePrice)))
		default:
			fmt.Fprintf(&b, "  %-16s %-22s %s\n", o.Item, o.Status, o.Error)
		}
	}
	purchased := "(none)"
	if len(s.Purchased) > 0 {
		purchased = strings.Join(s.Purchased, ", ")
	}
	fmt.Fprintf(&b, "Purchased items: %s\n", purchased)
	fmt.Fprintf(&b, "Total spent: %s\n", money(currency, s.Spent))
	fmt.Fprintf(&b, "Remaining budget: %s\n", money(currency, s.Remaining))
	_, err := io.WriteString(w, b.String())
	return err
}

func money(currency string, v decimal.Decimal) string {
	if currency == "" {
		return v.StringFixed(2)
	}
	return currency + " " + v.StringFixed(2)
}

func deref(p *decimal.Decimal) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return *p
}
