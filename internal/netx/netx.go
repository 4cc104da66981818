package netx

import (
	"context"
	"net"
	"strconv"
	"time"
)

// Dialer is a small wrapper around net.Dialer with sane defaults for the
// pricing peer: a bounded connect and TCP keep-alive on the one long stream.
type Dialer struct {
	Net *net.Dialer
}

func New(connectTimeout time.Duration) *Dialer {
	if connectTimeout <= 0 {
		connectTimeout = 3 * time.Second
	}
	return &Dialer{Net: &net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}}
}

// DialContext opens one TCP stream. network is normally "tcp".
func (d *Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := d.Net.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		// request lines are tiny; do not wait to coalesce them
		_ = tc.SetNoDelay(true)
	}
	return conn, nil
}

// Addr joins host and port, bracketing IPv6 literals.
func Addr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
