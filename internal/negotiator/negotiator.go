// Package negotiator decides, item by item, whether to buy at the market price
// offered by the pricing peer, given its reference price and a fixed budget.
//
// Each item is one strict sequence on the shared stream: reference query,
// market query, decision. Items never overlap.
package negotiator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricenegotiator/internal/quote"
	"pricenegotiator/internal/wire"
)

// Dialer opens the stream to the pricing peer. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// MalformedPolicy chooses what an unparseable price reply does to the run.
type MalformedPolicy int

const (
	// AbortOnMalformed ends the run. This is the default.
	AbortOnMalformed MalformedPolicy = iota
	// SkipOnMalformed treats the reply like a peer ERROR and moves on.
	SkipOnMalformed
)

func (p MalformedPolicy) String() string {
	if p == SkipOnMalformed {
		return "skip"
	}
	return "abort"
}

// ParseMalformedPolicy accepts "abort" or "skip".
func ParseMalformedPolicy(s string) (MalformedPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return AbortOnMalformed, nil
	case "skip":
		return SkipOnMalformed, nil
	default:
		return AbortOnMalformed, fmt.Errorf("unknown malformed-response policy %q (expected abort or skip)", s)
	}
}

// SourceWrapper decorates the source for one tag, e.g. with pacing or caching.
type SourceWrapper func(tag wire.Tag, s quote.Source) quote.Source

type Negotiator struct {
	addr      string
	dialer    Dialer
	rule      Rule
	log       zerolog.Logger
	policy    MalformedPolicy
	ioTimeout time.Duration
	wrap      SourceWrapper
	runID     string
}

// Option is a configuration option for the Negotiator.
type Option func(*Negotiator)

func WithDialer(d Dialer) Option {
	return func(n *Negotiator) {
		n.dialer = d
	}
}

func WithRule(r Rule) Option {
	return func(n *Negotiator) {
		n.rule = r
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(n *Negotiator) {
		n.log = l
	}
}

func WithMalformedPolicy(p MalformedPolicy) Option {
	return func(n *Negotiator) {
		n.policy = p
	}
}

// WithIOTimeout bounds each exchange. Zero keeps the transport's own behaviour.
func WithIOTimeout(d time.Duration) Option {
	return func(n *Negotiator) {
		n.ioTimeout = d
	}
}

func WithSourceWrapper(w SourceWrapper) Option {
	return func(n *Negotiator) {
		n.wrap = w
	}
}

func WithRunID(id string) Option {
	return func(n *Negotiator) {
		if id != "" {
			n.runID = id
		}
	}
}

// New creates a Negotiator for the peer at addr ("host:port").
func New(addr string, opts ...Option) *Negotiator {
	n := &Negotiator{
		addr:   addr,
		dialer: &net.Dialer{Timeout: 3 * time.Second},
		rule:   DefaultRule(),
		log:    zerolog.Nop(),
		runID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.log = n.log.With().Str("run_id", n.runID).Logger()
	return n
}

func (n *Negotiator) RunID() string { return n.runID }

// Run connects once, evaluates every item in order and closes the connection
// on every path out. A dial failure returns a *wire.ConnectionError and an
// empty Summary; no item is evaluated.
func (n *Negotiator) Run(ctx context.Context, items []string, budget decimal.Decimal) (Summary, error) {
	conn, err := n.dialer.DialContext(ctx, "tcp", n.addr)
	if err != nil {
		n.log.Error().Err(err).Str("addr", n.addr).Msg("cannot reach pricing peer")
		return Summary{}, &wire.ConnectionError{Addr: n.addr, Err: err}
	}
	client := wire.NewClient(conn, wire.WithIOTimeout(n.ioTimeout), wire.WithLogger(n.log))
	n.log.Info().Str("addr", n.addr).Msg("connected to pricing peer")
	defer func() {
		if cerr := client.Close(); cerr != nil {
			n.log.Warn().Err(cerr).Msg("closing connection")
		}
		n.log.Info().Str("addr", n.addr).Msg("disconnected from pricing peer")
	}()

	var static, dynamic quote.Source = wire.NewSource(client, wire.Static), wire.NewSource(client, wire.Dynamic)
	if n.wrap != nil {
		static = n.wrap(wire.Static, static)
		dynamic = n.wrap(wire.Dynamic, dynamic)
	}
	return n.Shop(ctx, static, dynamic, items, budget)
}

// Shop evaluates items against already-open sources. On a fatal error the
// Summary holds what was decided so far, ends with a failed Outcome for the
// item that stopped the run, and is marked Aborted.
func (n *Negotiator) Shop(ctx context.Context, static, dynamic quote.Source, items []string, budget decimal.Decimal) (Summary, error) {
	ledger := NewLedger(budget)
	outcomes := make([]Outcome, 0, len(items))
	n.log.Info().Strs("items", items).Str("budget", budget.String()).Msg("starting run")

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			n.log.Error().Err(err).Msg("run canceled")
			return summarize(n.runID, ledger, outcomes, true), err
		}
		next, out, err := n.step(ctx, static, dynamic, item, ledger)
		if err != nil {
			n.log.Error().Err(err).Str("item", item).Msg("run aborted")
			return summarize(n.runID, ledger, append(outcomes, out), true), err
		}
		ledger = next
		outcomes = append(outcomes, out)
	}

	s := summarize(n.runID, ledger, outcomes, false)
	n.log.Info().
		Strs("purchased", s.Purchased).
		Str("spent", s.Spent.String()).
		Str("remaining", s.Remaining.String()).
		Msg("run complete")
	return s, nil
}

// step runs reference query, market query and decision for one item.
func (n *Negotiator) step(ctx context.Context, static, dynamic quote.Source, item string, l Ledger) (Ledger, Outcome, error) {
	log := n.log.With().Str("item", item).Logger()

	base, err := static.Fetch(ctx, item)
	if err != nil {
		out, ferr := n.classify(log, item, static.Name(), err)
		return l, out, ferr
	}
	log.Info().Str("tag", static.Name()).Str("price", base.Price.String()).Msg("reference price")

	current, err := dynamic.Fetch(ctx, item)
	if err != nil {
		out, ferr := n.classify(log, item, dynamic.Name(), err)
		out.BasePrice = &base.Price
		return l, out, ferr
	}
	log.Info().Str("tag", dynamic.Name()).Str("price", current.Price.String()).Msg("market price")

	d := n.rule.Decide(base.Price, current.Price, l.Budget, l.Spent)
	if d == Buy {
		l = l.Record(item, current.Price)
	}
	log.Info().
		Stringer("decision", d).
		Str("threshold", n.rule.Threshold(base.Price).String()).
		Str("spent", l.Spent.String()).
		Msg("decided")

	return l, Outcome{
		Item:         item,
		Status:       StatusDecided,
		Decision:     d,
		BasePrice:    &base.Price,
		CurrentPrice: &current.Price,
	}, nil
}

// classify turns a query error into a skipped Outcome, or returns it as fatal.
func (n *Negotiator) classify(log zerolog.Logger, item, tag string, err error) (Outcome, error) {
	out := Outcome{Item: item, Error: err.Error()}
	switch {
	case errors.Is(err, wire.ErrPeerRefused):
		out.Status = StatusPeerError
		log.Warn().Err(err).Str("tag", tag).Msg("peer refused query, skipping item")
		return out, nil
	case errors.Is(err, wire.ErrMalformed) && n.policy == SkipOnMalformed:
		out.Status = StatusMalformed
		log.Warn().Err(err).Str("tag", tag).Msg("malformed reply, skipping item")
		return out, nil
	default:
		out.Status = StatusFailed
		return out, fmt.Errorf("%s query for %q: %w", tag, item, err)
	}
}
