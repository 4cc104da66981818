package ratelimit

import (
	"context"
	"sync"
	"time"

	"pricenegotiator/internal/quote"
)

// MinInterval wraps a source and enforces a minimum time between calls.
// Wrapped around the reference source it paces whole items, since every item
// starts with exactly one reference query.
type MinInterval struct {
	P        quote.Source
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) Name() string { return m.P.Name() }

func (m *MinInterval) Fetch(ctx context.Context, item string) (quote.Quote, error) {
	if m.Interval > 0 {
		m.mu.Lock()
		wait := time.Duration(0)
		if !m.last.IsZero() {
			wait = time.Until(m.last.Add(m.Interval))
		}
		m.mu.Unlock()
		if wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return quote.Quote{}, ctx.Err()
			case <-t.C:
			}
		}
	}
	q, err := m.P.Fetch(ctx, item)
	if m.Interval > 0 {
		m.mu.Lock()
		m.last = time.Now()
		m.mu.Unlock()
	}
	return q, err
}
