package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pricenegotiator/internal/quote"
)

type stampSource struct{ at []time.Time }

func (s *stampSource) Name() string { return "STATIC" }

func (s *stampSource) Fetch(_ context.Context, item string) (quote.Quote, error) {
	s.at = append(s.at, time.Now())
	return quote.Quote{Item: item, Price: decimal.NewFromInt(1)}, nil
}

func TestMinInterval_FirstCallImmediate(t *testing.T) {
	inner := &stampSource{}
	m := &MinInterval{P: inner, Interval: time.Hour}

	start := time.Now()
	_, err := m.Fetch(t.Context(), "laptop")
	require.NoError(t, err)
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, "STATIC", m.Name())
}

func TestMinInterval_SpacesCalls(t *testing.T) {
	inner := &stampSource{}
	m := &MinInterval{P: inner, Interval: 40 * time.Millisecond}

	for _, item := range []string{"a", "b", "c"} {
		_, err := m.Fetch(t.Context(), item)
		require.NoError(t, err)
	}
	require.Len(t, inner.at, 3)
	for i := 1; i < len(inner.at); i++ {
		require.GreaterOrEqual(t, inner.at[i].Sub(inner.at[i-1]), 35*time.Millisecond)
	}
}

func TestMinInterval_ContextCanceledWhileWaiting(t *testing.T) {
	inner := &stampSource{}
	m := &MinInterval{P: inner, Interval: time.Hour}
	_, err := m.Fetch(t.Context(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Fetch(ctx, "b")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, inner.at, 1)
}

func TestQueryLimiter_BurstThenSpaced(t *testing.T) {
	l := NewQueryLimiter(50*time.Millisecond, 2)
	inner := &stampSource{}
	src := &Limited{P: inner, L: l}

	start := time.Now()
	for _, item := range []string{"a", "b", "c"} {
		_, err := src.Fetch(t.Context(), item)
		require.NoError(t, err)
	}
	require.Len(t, inner.at, 3)
	require.Less(t, inner.at[1].Sub(start), 30*time.Millisecond)
	require.GreaterOrEqual(t, inner.at[2].Sub(start), 40*time.Millisecond)
	require.Equal(t, "STATIC", src.Name())
}

func TestQueryLimiter_SchedulesWithoutSleeping(t *testing.T) {
	l := NewQueryLimiter(time.Second, 3)
	base := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return base }

	// the burst is free
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(t.Context()))
	}
	require.Equal(t, base.Add(3*time.Second), l.next)

	// an idle period does not bank extra queries beyond the burst
	base = base.Add(time.Hour)
	require.NoError(t, l.Wait(t.Context()))
	require.Equal(t, base.Add(time.Second), l.next)
}

func TestQueryLimiter_CanceledWaitReturnsSlot(t *testing.T) {
	l := PerMinute(1, 1)
	require.NoError(t, l.Wait(t.Context()))

	l.mu.Lock()
	booked := l.next
	l.mu.Unlock()

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)

	l.mu.Lock()
	defer l.mu.Unlock()
	require.Equal(t, booked, l.next)
}

func TestQueryLimiter_Unlimited(t *testing.T) {
	l := PerMinute(0, 1)
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(t.Context()))
	}
}
