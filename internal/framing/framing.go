// Package framing implements the per-datagram sequence byte and
// duplicate-suppression scheme that sits between the transport adapter
// and the protocol codec (spec §4.2).
//
// On send, the sequence number increments mod 256. On receive, a frame
// whose length and bytes exactly match the previous accepted frame is
// dropped as a duplicate; otherwise it is accepted and becomes the new
// "previous". This is stateless across protocol semantics and relies
// only on the fact that any two legitimate successive frames differ in
// opcode, trans-id, or payload.
package framing

import (
	"bytes"

	"github.com/iluksbr/filerelay/internal/relayerr"
	"github.com/iluksbr/filerelay/internal/transport"
)

// Framer wraps a Transport, prepending/stripping the 1-byte sequence
// number and suppressing exact-duplicate frames.
type Framer struct {
	t    transport.Transport
	seq  byte
	prev []byte
}

// New wraps t with sequence framing.
func New(t transport.Transport) *Framer {
	return &Framer{t: t}
}

// Send transmits payload with the next sequence byte prepended.
func (f *Framer) Send(payload []byte) error {
	buf := make([]byte, 1+len(payload))
	buf[0] = f.seq
	copy(buf[1:], payload)
	f.seq++
	if err := f.t.Send(buf); err != nil {
		return err
	}
	return nil
}

// Receive returns the next non-duplicate application frame (sequence
// byte stripped), or nil with no error on timeout.
func (f *Framer) Receive() ([]byte, error) {
	for {
		raw, err := f.t.Receive()
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, nil // timeout, not an error per se
		}
		if len(raw) < 1 {
			return nil, &relayerr.ProtocolViolation{Reason: "frame shorter than sequence byte"}
		}
		frame := raw[1:]
		if f.prev != nil && bytes.Equal(frame, f.prev) {
			// IntegrityDrop: exact duplicate, silently discarded here.
			continue
		}
		dup := append([]byte(nil), frame...)
		f.prev = dup
		return frame, nil
	}
}

// MaxPacket exposes the underlying transport's current max application
// payload. The transport's own max_packet already excludes the 1-byte
// sequence overhead this layer adds (it drops only above max_packet+1,
// per spec §4.1), so no further adjustment is needed here.
func (f *Framer) MaxPacket() int { return f.t.MaxPacket() }

// SetMaxPacket forwards to the underlying transport unchanged.
func (f *Framer) SetMaxPacket(n int) { f.t.SetMaxPacket(n) }
