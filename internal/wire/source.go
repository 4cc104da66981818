package wire

import (
	"context"

	"pricenegotiator/internal/quote"
)

// Source exposes one protocol tag of a Client as a quote.Source.
type Source struct {
	client *Client
	tag    Tag
}

func NewSource(client *Client, tag Tag) *Source {
	return &Source{client: client, tag: tag}
}

func (s *Source) Name() string { return s.tag.String() }

func (s *Source) Fetch(ctx context.Context, item string) (quote.Quote, error) {
	return s.client.Query(ctx, s.tag, item)
}
