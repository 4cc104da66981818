package wire

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"pricenegotiator/internal/quote"
)

// DefaultMaxLineBytes bounds one reply line.
const DefaultMaxLineBytes = 4096

// Client runs request/response exchanges over one established stream.
// It is not safe for concurrent use; the protocol has no correlation ids.
type Client struct {
	// conn is the stream to the pricing peer.
	conn net.Conn
	// r frames replies on '\n'.
	r *bufio.Reader
	// ioTimeout bounds one exchange. Zero means no application deadline.
	ioTimeout time.Duration
	// maxLineBytes bounds one reply line.
	maxLineBytes int
	log          zerolog.Logger
	closed       bool
	now          func() time.Time
}

// ClientOption is a configuration option for the Client.
type ClientOption func(*Client)

// WithIOTimeout sets a deadline for each exchange.
func WithIOTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.ioTimeout = d
	}
}

// WithMaxLineBytes sets the longest accepted reply line.
func WithMaxLineBytes(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxLineBytes = n
		}
	}
}

// WithLogger sets the logger used for per-exchange debug output.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient wraps conn. The Client takes ownership and closes conn in Close.
func NewClient(conn net.Conn, opts ...ClientOption) *Client {
	c := &Client{
		conn:         conn,
		maxLineBytes: DefaultMaxLineBytes,
		log:          zerolog.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.r = bufio.NewReader(conn)
	return c
}

// Query sends one price request and reads its reply line.
// A *ProtocolError or *MalformedResponseError describes a reply the peer did
// send; any other error means the stream itself failed.
func (c *Client) Query(ctx context.Context, tag Tag, item string) (quote.Quote, error) {
	if c.closed {
		return quote.Quote{}, ErrClientClosed
	}
	if err := ctx.Err(); err != nil {
		return quote.Quote{}, err
	}
	req, err := FormatRequest(tag, item)
	if err != nil {
		return quote.Quote{}, err
	}
	if err := c.conn.SetDeadline(c.deadline(ctx)); err != nil {
		return quote.Quote{}, fmt.Errorf("setting deadline: %w", err)
	}

	if _, err := io.WriteString(c.conn, req); err != nil {
		return quote.Quote{}, fmt.Errorf("sending %s request for %q: %w", tag, item, err)
	}
	c.log.Debug().Str("tag", tag.String()).Str("item", item).Msg("request sent")

	line, err := c.readLine()
	if errors.Is(err, ErrLineTooLong) {
		return quote.Quote{}, &MalformedResponseError{Tag: tag, Item: item, Line: line, Err: err}
	}
	if err != nil {
		return quote.Quote{}, fmt.Errorf("reading %s reply for %q: %w", tag, item, err)
	}
	c.log.Debug().Str("tag", tag.String()).Str("item", item).Str("reply", line).Msg("reply received")

	price, err := ParseResponse(tag, item, line)
	if err != nil {
		return quote.Quote{}, err
	}
	return quote.Quote{
		Item:       item,
		Price:      price,
		Source:     tag.String(),
		Raw:        line,
		ReceivedAt: c.now().UTC(),
	}, nil
}

// Close closes the stream. Calls after the first are no-ops.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Client) deadline(ctx context.Context) time.Time {
	var d time.Time
	if c.ioTimeout > 0 {
		d = c.now().Add(c.ioTimeout)
	}
	if cd, ok := ctx.Deadline(); ok && (d.IsZero() || cd.Before(d)) {
		d = cd
	}
	return d
}

// readLine returns one reply without its terminator. A trailing line with no
// terminator is still a reply when the peer closes right after it. A reply
// longer than maxLineBytes is consumed through its terminator before
// ErrLineTooLong is returned, so the next exchange starts on a fresh line.
func (c *Client) readLine() (string, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, err := c.r.ReadSlice('\n')
		if !tooLong {
			buf = append(buf, chunk...)
			if len(trimEOL(buf)) > c.maxLineBytes {
				tooLong = true
				buf = buf[:c.maxLineBytes]
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case tooLong && (err == nil || errors.Is(err, io.EOF)):
			return string(buf), ErrLineTooLong
		case err == nil:
			return string(trimEOL(buf)), nil
		case errors.Is(err, io.EOF) && len(buf) > 0:
			return string(trimEOL(buf)), nil
		default:
			return "", err
		}
	}
}

func trimEOL(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
