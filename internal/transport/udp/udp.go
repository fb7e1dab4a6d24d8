// Package udp implements the datagram-socket Transport variant used to
// stand in for the USB bulk link during development and testing,
// grounded in the teacher's internal/serverudp and internal/clientudp
// (net.ListenUDP / net.DialUDP usage), generalized to a single-datagram
// Transport instead of a REQ/META/DATA file-transfer loop.
package udp

import (
	"fmt"
	"net"
	"time"

	"github.com/iluksbr/filerelay/internal/config"
	"github.com/iluksbr/filerelay/internal/relayerr"
	"github.com/iluksbr/filerelay/internal/transport"
)

// Transport is a UDP-backed Transport. It silently drops frames larger
// than MaxPacket+1 on send (spec §4.1), matching the wire behavior a
// real USB bulk endpoint would impose via its own MTU.
type Transport struct {
	conn       *net.UDPConn
	remote     *net.UDPAddr // nil on the server side, which tracks peer per Receive
	lastPeer   *net.UDPAddr
	maxPacket  int
	readBuf    []byte
	readDeadl  time.Duration
}

var _ transport.TimeoutTransport = (*Transport)(nil)

// Dial connects to a server at addr ("host:port") as a client.
func Dial(addr string) (*Transport, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadBuffer(config.DefaultReadBuffer)
	_ = conn.SetWriteBuffer(config.DefaultWriteBuffer)
	return &Transport{
		conn:      conn,
		remote:    raddr,
		maxPacket: config.DefaultMaxPacket,
		readBuf:   make([]byte, config.MaxMaxPacket+1),
		readDeadl: config.DefaultClientTimeout,
	}, nil
}

// Listen binds a server-side endpoint at addr ("host:port"). The
// server's Receive call tracks the most recent peer address so Send
// replies go to whoever last spoke, matching the shipped client's
// single in-flight exchange per link (spec §5).
func Listen(addr string) (*Transport, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadBuffer(config.DefaultReadBuffer)
	_ = conn.SetWriteBuffer(config.DefaultWriteBuffer)
	return &Transport{
		conn:      conn,
		maxPacket: config.DefaultMaxPacket,
		readBuf:   make([]byte, config.MaxMaxPacket+1),
	}, nil
}

// Send transmits b to the connected peer (client mode) or to the most
// recently observed peer address (server mode).
func (t *Transport) Send(b []byte) error {
	if len(b) > t.maxPacket+1 {
		return nil // dropped: exceeds max_packet+1, spec §4.1
	}
	var n int
	var err error
	if t.remote != nil {
		n, err = t.conn.Write(b)
	} else if t.lastPeer != nil {
		n, err = t.conn.WriteToUDP(b, t.lastPeer)
	} else {
		return &relayerr.ApplicationError{Reason: "no peer to send to yet"}
	}
	if err != nil {
		return fmt.Errorf("udp transport write: %w", err)
	}
	if n != len(b) {
		return fmt.Errorf("udp transport short write: wrote %d of %d bytes", n, len(b))
	}
	return nil
}

// Receive reads the next datagram, returning (nil, nil) on timeout.
func (t *Transport) Receive() ([]byte, error) {
	if t.readDeadl > 0 {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.readDeadl)); err != nil {
			return nil, &relayerr.TransportFatal{Err: err}
		}
	}
	n, peer, err := t.conn.ReadFromUDP(t.readBuf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, &relayerr.TransportFatal{Err: err}
	}
	if t.remote == nil {
		t.lastPeer = peer
	}
	out := make([]byte, n)
	copy(out, t.readBuf[:n])
	return out, nil
}

// MaxPacket returns the negotiated max application payload.
func (t *Transport) MaxPacket() int { return t.maxPacket }

// SetMaxPacket clamps n per spec §4.1 and grows the read buffer to
// match when needed.
func (t *Transport) SetMaxPacket(n int) {
	t.maxPacket = transport.ClampMaxPacket(n, config.MinMaxPacket, config.MaxMaxPacket)
	if len(t.readBuf) < t.maxPacket+1 {
		t.readBuf = make([]byte, t.maxPacket+1)
	}
}

// SetReadTimeout configures the per-Receive deadline. Zero disables
// the deadline (Receive blocks indefinitely).
func (t *Transport) SetReadTimeout(d time.Duration) { t.readDeadl = d }

// Close releases the underlying socket.
func (t *Transport) Close() error { return t.conn.Close() }
