// Package wire speaks the pricing peer's line protocol.
//
// Requests are "<TAG>:PRICE:<item>\n". A reply is one line: either an ERROR
// line or a colon-separated line whose last field is the price, e.g.
// "STATIC:PRICE:laptop:1.5E7". Leading reply fields are not interpreted.
// There are no request ids, so exchanges on one stream must alternate strictly.
package wire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Tag selects which pricing source the peer consults.
type Tag string

const (
	// Static is the reference (base) price channel.
	Static Tag = "STATIC"
	// Dynamic is the current (market) price channel.
	Dynamic Tag = "DYNAMIC"
)

const (
	queryPrice  = "PRICE"
	errorPrefix = "ERROR"
)

func (t Tag) String() string { return string(t) }

// FormatRequest builds one request line, terminator included.
func FormatRequest(tag Tag, item string) (string, error) {
	if tag != Static && tag != Dynamic {
		return "", fmt.Errorf("unknown tag %q", string(tag))
	}
	if item == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidItem)
	}
	if strings.ContainsAny(item, ":\r\n") {
		return "", fmt.Errorf("%w: %q contains a separator", ErrInvalidItem, item)
	}
	return string(tag) + ":" + queryPrice + ":" + item + "\n", nil
}

// ParseResponse extracts the price from one reply line.
func ParseResponse(tag Tag, item, line string) (decimal.Decimal, error) {
	s := strings.TrimSpace(line)
	if strings.HasPrefix(s, errorPrefix) {
		reason := strings.TrimPrefix(s, errorPrefix)
		reason = strings.TrimSpace(strings.TrimPrefix(reason, ":"))
		return decimal.Zero, &ProtocolError{Tag: tag, Item: item, Reason: reason}
	}

	fields := strings.Split(s, ":")
	last := strings.TrimSpace(fields[len(fields)-1])
	if last == "" {
		return decimal.Zero, &MalformedResponseError{Tag: tag, Item: item, Line: s, Err: errors.New("empty price field")}
	}
	price, err := decimal.NewFromString(last)
	if err != nil {
		return decimal.Zero, &MalformedResponseError{Tag: tag, Item: item, Line: s, Err: err}
	}
	if price.IsNegative() {
		return decimal.Zero, &MalformedResponseError{Tag: tag, Item: item, Line: s, Err: errors.New("negative price")}
	}
	return price, nil
}
