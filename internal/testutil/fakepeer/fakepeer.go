// Package fakepeer runs an in-process pricing peer for tests.
// Start serves STATIC and DYNAMIC price lookups per item and answers
// "ERROR:Item not found" for unknown items.
package fakepeer

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"
)

// Hangup makes a Handler close the connection instead of replying.
const Hangup = "\x00hangup"

// Prices holds the raw price text served for one item. An empty field makes
// that tag answer with an ERROR line.
type Prices struct {
	Static  string
	Dynamic string
}

// Handler maps one request line (without terminator) to one reply line.
type Handler func(line string) string

type Peer struct {
	ln      net.Listener
	g       errgroup.Group
	handler Handler

	mu           sync.Mutex
	requests     []string
	conns        []net.Conn
	accepted     int
	clientClosed int
}

// Start serves the given price table on a loopback port until the test ends.
func Start(t testing.TB, prices map[string]Prices) *Peer {
	t.Helper()
	return StartHandler(t, TableHandler(prices))
}

// StartHandler serves replies from h on a loopback port until the test ends.
func StartHandler(t testing.TB, h Handler) *Peer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("fakepeer listen: %v", err)
	}
	p := &Peer{ln: ln, handler: h}
	p.g.Go(p.accept)
	t.Cleanup(func() {
		if err := p.Close(); err != nil {
			t.Errorf("fakepeer close: %v", err)
		}
	})
	return p
}

// TableHandler answers from a fixed price table, with the seller's error texts.
func TableHandler(prices map[string]Prices) Handler {
	return func(line string) string {
		parts := strings.Split(line, ":")
		if len(parts) < 3 {
			return "ERROR:Invalid message format"
		}
		tag, query, item := parts[0], parts[1], parts[2]
		if query != "PRICE" {
			return "ERROR:Invalid protocol or query"
		}
		entry, ok := prices[item]
		switch tag {
		case "STATIC":
			if !ok || entry.Static == "" {
				return "ERROR:Item not found"
			}
			return "STATIC:PRICE:" + item + ":" + entry.Static
		case "DYNAMIC":
			if !ok || entry.Dynamic == "" {
				return "ERROR:Item not found"
			}
			return "DYNAMIC:PRICE:" + item + ":" + entry.Dynamic
		default:
			return "ERROR:Invalid protocol or query"
		}
	}
}

func (p *Peer) Addr() string { return p.ln.Addr().String() }

// Requests returns every request line received so far, in arrival order.
func (p *Peer) Requests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.requests...)
}

// Accepted is the number of connections accepted.
func (p *Peer) Accepted() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accepted
}

// ClientClosed is the number of connections the client closed from its side.
func (p *Peer) ClientClosed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clientClosed
}

// Close stops accepting, drops open connections and waits for handlers.
func (p *Peer) Close() error {
	err := p.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	p.mu.Lock()
	for _, c := range p.conns {
		_ = c.Close()
	}
	p.mu.Unlock()
	if werr := p.g.Wait(); werr != nil && err == nil {
		err = werr
	}
	return err
}

func (p *Peer) accept() error {
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		p.mu.Lock()
		p.conns = append(p.conns, conn)
		p.accepted++
		p.mu.Unlock()
		p.g.Go(func() error {
			p.serve(conn)
			return nil
		})
	}
}

func (p *Peer) serve(conn net.Conn) {
	defer conn.Close()
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		p.mu.Lock()
		p.requests = append(p.requests, line)
		p.mu.Unlock()

		reply := p.handler(line)
		if reply == Hangup {
			return
		}
		if _, err := conn.Write([]byte(reply + "\n")); err != nil {
			return
		}
	}
	if sc.Err() == nil {
		p.mu.Lock()
		p.clientClosed++
		p.mu.Unlock()
	}
}
