// Package client implements the client engine (spec §4.3–§4.4): request
// encoding with the P push/c ack loop, response reassembly over
// d/l/z frames, and the three delivery styles (accumulating, callback,
// lazy sequence), grounded in the teacher's clientudp.Config/Callbacks
// shape (internal/clientudp/clientudp.go) generalized from its
// REQ/META/NACK transfer state machine to this protocol's opcode
// table and continuation scheme.
package client

import (
	"iter"

	"github.com/sirupsen/logrus"

	"github.com/iluksbr/filerelay/internal/framing"
	"github.com/iluksbr/filerelay/internal/relayerr"
	"github.com/iluksbr/filerelay/internal/relaymetrics"
	"github.com/iluksbr/filerelay/internal/transport"
	"github.com/iluksbr/filerelay/internal/wire"
)

// Client drives one link's request/response exchanges. Like the
// server engine, it is single-threaded cooperative: one call runs to
// completion before the next begins (spec §5).
type Client struct {
	framer  *framing.Framer
	metrics *relaymetrics.ClientMetrics
	log     *logrus.Entry
}

// New wraps t as a relay client.
func New(t transport.Transport, m *relaymetrics.ClientMetrics, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{framer: framing.New(t), metrics: m, log: log}
}

// reset sends an unconditional Z, ignoring its result: the caller is
// already unwinding in an error path (spec §4.3, §7).
func (c *Client) reset() {
	_ = c.framer.Send(wire.Encode(wire.OpReset, wire.UnslottedTransID, nil))
}

// sendCommand implements spec §4.3: if payload doesn't fit in one
// frame, it is split across P frames each awaiting a c ack, then the
// terminal opcode frame carries whatever remains.
func (c *Client) sendCommand(op wire.Opcode, payload []byte) error {
	maxPacket := c.framer.MaxPacket()
	remaining := payload
	for len(remaining)+2 > maxPacket {
		chunk := remaining[:maxPacket-2]
		if err := c.framer.Send(wire.Encode(wire.OpPush, wire.UnslottedTransID, chunk)); err != nil {
			return err
		}
		raw, err := c.framer.Receive()
		if err != nil {
			return err
		}
		if raw == nil {
			if c.metrics != nil {
				c.metrics.Timeouts.Inc()
			}
			return &relayerr.TransportTimeout{}
		}
		frame, derr := wire.Decode(raw)
		if derr != nil || frame.Op != wire.OpPushAck {
			c.reset()
			if c.metrics != nil {
				c.metrics.ProtocolErrors.Inc()
			}
			return &relayerr.ProtocolViolation{Reason: "expected push ack mid-transfer"}
		}
		remaining = remaining[len(chunk):]
	}
	return c.framer.Send(wire.Encode(op, wire.UnslottedTransID, remaining))
}

// exchange sends one command and reads frames until l/z/timeout/error,
// invoking onChunk for each d/l payload. onChunk returning false stops
// the exchange early without sending a final Continue (used by GetSeq
// when its consumer stops iterating) — the server's slot is reclaimed
// later by the purge pass, not synchronously.
func (c *Client) exchange(op wire.Opcode, payload []byte, onChunk func([]byte) bool) error {
	if c.metrics != nil {
		c.metrics.RequestsSent.Inc()
	}
	if err := c.sendCommand(op, payload); err != nil {
		return err
	}

	for {
		raw, err := c.framer.Receive()
		if err != nil {
			return err
		}
		if raw == nil {
			if c.metrics != nil {
				c.metrics.Timeouts.Inc()
			}
			return &relayerr.TransportTimeout{}
		}
		frame, derr := wire.Decode(raw)
		if derr != nil {
			c.reset()
			if c.metrics != nil {
				c.metrics.ProtocolErrors.Inc()
			}
			return &relayerr.ProtocolViolation{Reason: "runt frame"}
		}

		if c.metrics != nil {
			c.metrics.BytesReceived.Add(float64(len(frame.Payload)))
		}

		switch frame.Op {
		case wire.OpData:
			if onChunk != nil && !onChunk(frame.Payload) {
				return nil
			}
			if err := c.framer.Send(wire.Encode(wire.OpContinue, frame.TransID, nil)); err != nil {
				return err
			}
		case wire.OpLast:
			if onChunk != nil {
				onChunk(frame.Payload)
			}
			return nil
		case wire.OpError:
			if c.metrics != nil {
				c.metrics.ApplicationErrs.Inc()
			}
			return &relayerr.ApplicationError{Reason: string(frame.Payload)}
		default:
			c.reset()
			if c.metrics != nil {
				c.metrics.ProtocolErrors.Inc()
			}
			return &relayerr.ProtocolViolation{Reason: "unexpected opcode " + frame.Op.String()}
		}
	}
}

// Get issues op with payload and returns the fully accumulated
// response (spec §4.4, accumulating style).
func (c *Client) Get(op wire.Opcode, payload []byte) ([]byte, error) {
	var buf []byte
	err := c.exchange(op, payload, func(chunk []byte) bool {
		buf = append(buf, chunk...)
		return true
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// GetFunc issues op with payload, invoking fn once per chunk in order
// (spec §4.4, callback style).
func (c *Client) GetFunc(op wire.Opcode, payload []byte, fn func([]byte)) error {
	return c.exchange(op, payload, func(chunk []byte) bool {
		fn(chunk)
		return true
	})
}

// GetSeq issues op with payload and returns a lazily-pulled,
// single-consumer sequence of (chunk, error) pairs (spec §4.4, §9):
// each advance of the sequence drives one more frame of the exchange,
// sending a Continue only once the consumer asks for the next value.
// The sequence is not restartable.
func (c *Client) GetSeq(op wire.Opcode, payload []byte) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		err := c.exchange(op, payload, func(chunk []byte) bool {
			return yield(chunk, nil)
		})
		if err != nil {
			yield(nil, err)
		}
	}
}
