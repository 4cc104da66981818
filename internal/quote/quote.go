package quote

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one price answer for one item from one source.
// Price is exact decimal; the peer sends doubles and comparisons against the
// markup threshold must not pick up float error.
type Quote struct {
	Item       string          `json:"item"`
	Price      decimal.Decimal `json:"price"`
	Source     string          `json:"source"`
	Raw        string          `json:"raw,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Source answers price queries one item at a time.
//
//go:generate mockgen -package=negotiator_test -destination=../negotiator/mock_source_test.go -source=quote.go Source
type Source interface {
	Name() string
	Fetch(ctx context.Context, item string) (Quote, error)
}
