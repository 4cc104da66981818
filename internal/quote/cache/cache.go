package cache

import (
	"context"
	"sync"
	"time"

	"pricenegotiator/internal/quote"
)

type entry struct {
	expiresAt time.Time
	q         quote.Quote
}

// Source caches successful quotes per item for a TTL.
// Errors are never cached, so a peer ERROR is asked again next time.
// Only meant for reference prices: a cached market price would be stale.
type Source struct {
	P        quote.Source
	TTL      time.Duration
	MaxItems int

	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time
}

func (c *Source) Name() string { return c.P.Name() }

func (c *Source) Fetch(ctx context.Context, item string) (quote.Quote, error) {
	if c.TTL <= 0 {
		return c.P.Fetch(ctx, item)
	}
	now := c.clock()

	c.mu.Lock()
	if e, ok := c.items[item]; ok && now.Before(e.expiresAt) {
		c.mu.Unlock()
		return e.q, nil
	}
	c.mu.Unlock()

	q, err := c.P.Fetch(ctx, item)
	if err != nil {
		return quote.Quote{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]entry)
	}
	c.items[item] = entry{expiresAt: now.Add(c.TTL), q: q}
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		// expired first, then arbitrary
		for k, v := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if !now.Before(v.expiresAt) {
				delete(c.items, k)
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if k != item {
				delete(c.items, k)
			}
		}
	}
	return q, nil
}

// Len reports the number of cached items, expired ones included.
func (c *Source) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Source) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}
