package ratelimit

import (
	"context"
	"sync"
	"time"

	"pricenegotiator/internal/quote"
)

// QueryLimiter spaces queries on one stream: at most burst queries back to
// back, then one per interval. It keeps the time the next query is due
// instead of a token count. Share one limiter between the STATIC and DYNAMIC
// sources so the cap covers the whole stream.
type QueryLimiter struct {
	interval time.Duration
	slack    time.Duration // how far ahead of schedule a burst may run

	mu   sync.Mutex
	next time.Time
	now  func() time.Time
}

// NewQueryLimiter allows one query per interval after an initial burst.
func NewQueryLimiter(interval time.Duration, burst int) *QueryLimiter {
	if burst < 1 {
		burst = 1
	}
	return &QueryLimiter{
		interval: interval,
		slack:    time.Duration(burst-1) * interval,
		now:      time.Now,
	}
}

// PerMinute builds a limiter from a queries-per-minute cap. qpm <= 0 means
// no limit.
func PerMinute(qpm, burst int) *QueryLimiter {
	if qpm <= 0 {
		return NewQueryLimiter(0, burst)
	}
	return NewQueryLimiter(time.Minute/time.Duration(qpm), burst)
}

// Wait books the next query slot and sleeps until it opens. A canceled wait
// hands the slot back.
func (l *QueryLimiter) Wait(ctx context.Context) error {
	if l.interval <= 0 {
		return ctx.Err()
	}
	l.mu.Lock()
	now := l.now()
	if l.next.Before(now) {
		l.next = now
	}
	wait := l.next.Sub(now) - l.slack
	l.next = l.next.Add(l.interval)
	l.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		l.mu.Lock()
		l.next = l.next.Add(-l.interval)
		l.mu.Unlock()
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Limited gates a source with a shared QueryLimiter.
type Limited struct {
	P quote.Source
	L *QueryLimiter
}

func (s *Limited) Name() string { return s.P.Name() }

func (s *Limited) Fetch(ctx context.Context, item string) (quote.Quote, error) {
	if s.L != nil {
		if err := s.L.Wait(ctx); err != nil {
			return quote.Quote{}, err
		}
	}
	return s.P.Fetch(ctx, item)
}
