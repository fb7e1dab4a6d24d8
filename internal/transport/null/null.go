// Package null provides a synchronous in-memory loopback Transport pair
// for tests, grounded in original_source/lib/usbNull.py (the Python
// original's test stub — including fixing its "date"/"data" typo,
// spec §9, rather than carrying it over).
package null

import (
	"sync"

	"github.com/iluksbr/filerelay/internal/config"
	"github.com/iluksbr/filerelay/internal/relayerr"
	"github.com/iluksbr/filerelay/internal/transport"
)

// Pair is a connected pair of loopback transports: datagrams sent on
// one side arrive, in order, as Receive results on the other.
type Pair struct {
	a, b *Transport
}

// NewPair creates two endpoints wired to each other.
func NewPair() (client, server *Transport) {
	aToB := make(chan []byte, 64)
	bToA := make(chan []byte, 64)
	a := &Transport{out: aToB, in: bToA, maxPacket: config.DefaultMaxPacket}
	b := &Transport{out: bToA, in: aToB, maxPacket: config.DefaultMaxPacket}
	return a, b
}

// Transport is one endpoint of a loopback Pair.
type Transport struct {
	mu        sync.Mutex
	out       chan []byte
	in        chan []byte
	maxPacket int
	closed    bool
}

var _ transport.Transport = (*Transport)(nil)

// Send delivers b to the peer endpoint's Receive queue.
func (t *Transport) Send(b []byte) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return &relayerr.TransportFatal{Err: errClosed}
	}
	if len(b) > t.maxPacket+1 {
		// Silently dropped, matching the datagram variant's behavior
		// for frames exceeding max_packet+1 (spec §4.1).
		return nil
	}
	cp := append([]byte(nil), b...)
	select {
	case t.out <- cp:
	default:
		// Unbounded blocking sends would deadlock a single-threaded
		// cooperative test; drop on a full queue instead.
	}
	return nil
}

// Receive blocks until a datagram is available or the peer closes.
// It never times out on its own — callers needing timeout semantics
// should race it against a context deadline.
func (t *Transport) Receive() ([]byte, error) {
	b, ok := <-t.in
	if !ok {
		return nil, &relayerr.TransportFatal{Err: errClosed}
	}
	return b, nil
}

// Close marks this endpoint closed; further sends fail and the peer's
// next Receive observes channel closure.
func (t *Transport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.out)
}

// MaxPacket returns the negotiated max application payload.
func (t *Transport) MaxPacket() int { return t.maxPacket }

// SetMaxPacket clamps n per spec §4.1.
func (t *Transport) SetMaxPacket(n int) {
	t.maxPacket = transport.ClampMaxPacket(n, config.MinMaxPacket, config.MaxMaxPacket)
}

type nullError string

func (e nullError) Error() string { return string(e) }

const errClosed = nullError("loopback transport closed")
