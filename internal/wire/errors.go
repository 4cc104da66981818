package wire

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pricing line protocol.
// Use errors.Is() to check against these.
var (
	ErrConnection   = errors.New("wire: connection failed")
	ErrPeerRefused  = errors.New("wire: peer returned error")
	ErrMalformed    = errors.New("wire: malformed response")
	ErrInvalidItem  = errors.New("wire: invalid item")
	ErrLineTooLong  = errors.New("wire: response line too long")
	ErrClientClosed = errors.New("wire: client closed")
)

// ConnectionError reports that the pricing peer could not be reached.
// It is fatal for a run: nothing is retried.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return []error{ErrConnection, e.Err}
}

// ProtocolError is an ERROR line from the peer. It only spoils the current item.
type ProtocolError struct {
	Tag    Tag
	Item   string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s price for %q: peer error: %s", e.Tag, e.Item, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return ErrPeerRefused
}

// MalformedResponseError is a reply that is neither an ERROR line nor a line
// ending in a parseable price.
type MalformedResponseError struct {
	Tag  Tag
	Item string
	Line string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s price for %q: malformed response %q: %v", e.Tag, e.Item, e.Line, e.Err)
	}
	return fmt.Sprintf("%s price for %q: malformed response %q", e.Tag, e.Item, e.Line)
}

func (e *MalformedResponseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformed}
	}
	return []error{ErrMalformed, e.Err}
}
