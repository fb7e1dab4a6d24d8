package client

import (
	"bytes"

	"github.com/iluksbr/filerelay/internal/relayerr"
	"github.com/iluksbr/filerelay/internal/wire"
)

// Noop sends a health probe (spec §4.5, §7: "no response" drives the
// retrieval front-end's session-setup failure message).
func (c *Client) Noop() error {
	_, err := c.Get(wire.OpNoop, nil)
	return err
}

// regularFileMarker is the server's L response for a path that
// resolves to a regular file rather than a directory (spec §4.5).
var regularFileMarker = []byte{0, 0}

// List lists dir's entries. isFile reports that dir actually named a
// regular file, per the "\0\0" special case (spec §4.5).
func (c *Client) List(dir string) (names []string, isFile bool, err error) {
	buf, err := c.Get(wire.OpList, []byte(dir))
	if err != nil {
		return nil, false, err
	}
	if bytes.Equal(buf, regularFileMarker) {
		return nil, true, nil
	}
	if len(buf) == 0 {
		return nil, false, nil
	}
	parts := bytes.Split(buf, []byte{0})
	names = make([]string, len(parts))
	for i, p := range parts {
		names[i] = string(p)
	}
	return names, false, nil
}

// Stat returns the packed stat record for path (spec §4.9).
func (c *Client) Stat(path string) (wire.StatRecord, error) {
	buf, err := c.Get(wire.OpStat, []byte(path))
	if err != nil {
		return wire.StatRecord{}, err
	}
	return wire.UnpackStatRecord(buf)
}

// Hash returns the SHA-512 hex digest of path.
func (c *Client) Hash(path string) (string, error) {
	buf, err := c.Get(wire.OpHash, []byte(path))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// Readlink returns path's symlink target, relative to its sandbox
// root (spec §4.8).
func (c *Client) Readlink(path string) (string, error) {
	buf, err := c.Get(wire.OpReadlink, []byte(path))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// ServerMaxPacket queries the server's current max_packet (spec §4.5).
func (c *Client) ServerMaxPacket() (int, error) {
	buf, err := c.Get(wire.OpMaxPacket, nil)
	if err != nil {
		return 0, err
	}
	return wire.UnpackMaxPacket(buf)
}

// Reset sends Z, freeing every server-side slot. Idempotent (spec §5).
func (c *Client) Reset() error {
	_, err := c.Get(wire.OpReset, nil)
	return err
}

// SetPriority sends the relay-consumed Q opcode; the server ignores it
// and replies with an empty data response (spec §4.5). level occupies
// the argument byte directly, never path-accumulated (spec §9).
func (c *Client) SetPriority(level byte) error {
	if err := c.framer.Send(wire.EncodeOp1(wire.OpSetPriority, level)); err != nil {
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
	if derr != nil {
		c.reset()
		return &relayerr.ProtocolViolation{Reason: "runt frame"}
	}
	if frame.Op == wire.OpError {
		return &relayerr.ApplicationError{Reason: string(frame.Payload)}
	}
	return nil
}
