// Package wire defines the relay protocol's on-the-wire frame format:
// opcode bytes, transaction ids, and the packed stat record (spec §3, §4).
//
// Frames are bit-exact, little-endian where multi-byte, matching the
// layout a C or Python peer on the other side of the link would produce.
package wire

import "encoding/binary"

// Opcode identifies the first byte of a frame.
type Opcode byte

// Opcode table (spec §3).
const (
	OpPush        Opcode = 'P' // C->S: continuation of a multi-frame request payload
	OpPushAck     Opcode = 'c' // S->C: "push accepted, send more"
	OpNoop        Opcode = 'N' // C->S: no-op / health probe
	OpSetPriority Opcode = 'Q' // C->S: SetPriority; server ignores, relay consumes
	OpList        Opcode = 'L' // C->S: list directory
	OpGet         Opcode = 'G' // C->S: get file contents
	OpHash        Opcode = 'H' // C->S: hash file, SHA-512 hex
	OpReadlink    Opcode = 'K' // C->S: read symlink target as sandbox-relative path
	OpStat        Opcode = 'S' // C->S: stat path
	OpMaxPacket   Opcode = 'M' // C->S: get server max_packet
	OpReset       Opcode = 'Z' // C->S: reset all server buffers
	OpContinue    Opcode = 'C' // C->S: continue; payload byte = trans-id
	OpData        Opcode = 'd' // S->C: data fragment, more to come
	OpLast        Opcode = 'l' // S->C: last fragment of a response
	OpError       Opcode = 'z' // S->C: error
)

// String names an opcode for logging.
func (o Opcode) String() string {
	switch o {
	case OpPush:
		return "P(push)"
	case OpPushAck:
		return "c(push-ack)"
	case OpNoop:
		return "N(noop)"
	case OpSetPriority:
		return "Q(set-priority)"
	case OpList:
		return "L(list)"
	case OpGet:
		return "G(get)"
	case OpHash:
		return "H(hash)"
	case OpReadlink:
		return "K(readlink)"
	case OpStat:
		return "S(stat)"
	case OpMaxPacket:
		return "M(max-packet)"
	case OpReset:
		return "Z(reset)"
	case OpContinue:
		return "C(continue)"
	case OpData:
		return "d(data)"
	case OpLast:
		return "l(last)"
	case OpError:
		return "z(error)"
	default:
		return "?(unknown)"
	}
}

// UnslottedTransID is the transaction id meaning "single-frame response,
// no slot" — trans-id 0 never names an allocated slot.
const UnslottedTransID = 0

// MinFrameLen is the shortest frame a peer may legally send. Anything
// shorter is a runt (spec §4.4, §4.5): ProtocolViolation.
const MinFrameLen = 2

// Frame is a decoded application-layer datagram, after the framing
// layer has stripped its sequence byte.
type Frame struct {
	Op      Opcode
	TransID byte
	Payload []byte
}

// Encode serializes a frame as opcode || transID || payload.
func Encode(op Opcode, transID byte, payload []byte) []byte {
	buf := make([]byte, 2+len(payload))
	buf[0] = byte(op)
	buf[1] = transID
	copy(buf[2:], payload)
	return buf
}

// EncodeOp1 serializes a frame carrying only a single argument byte in
// place of transID — used by C (continue) and Q (set-priority), which
// must never be confused with P's path-accumulation payload (spec §9).
func EncodeOp1(op Opcode, arg byte) []byte {
	return []byte{byte(op), arg}
}

// Decode parses a raw frame. A frame shorter than MinFrameLen is a runt.
func Decode(b []byte) (Frame, error) {
	if len(b) < MinFrameLen {
		return Frame{}, errRunt
	}
	return Frame{Op: Opcode(b[0]), TransID: b[1], Payload: b[2:]}, nil
}

var errRunt = frameError("runt frame: shorter than 2 bytes")

type frameError string

func (e frameError) Error() string { return string(e) }

// StatFlags are the bit-0/1/7 flags packed into a stat record.
type StatFlags byte

const (
	StatIsDir       StatFlags = 1 << 0
	StatIsRegular   StatFlags = 1 << 1
	StatIsSymlink   StatFlags = 1 << 7
)

// StatRecordLen is the packed size of a stat record: <B H L L L>.
const StatRecordLen = 1 + 2 + 4 + 4 + 4

// StatRecord is the decoded form of the packed little-endian stat
// payload returned for the S opcode (spec §3).
type StatRecord struct {
	Flags StatFlags
	Mode  uint16
	Size  uint32
	Mtime uint32
	Ctime uint32
}

// Pack serializes a StatRecord as <B H L L L> little-endian.
func (s StatRecord) Pack() []byte {
	buf := make([]byte, StatRecordLen)
	buf[0] = byte(s.Flags)
	binary.LittleEndian.PutUint16(buf[1:3], s.Mode)
	binary.LittleEndian.PutUint32(buf[3:7], s.Size)
	binary.LittleEndian.PutUint32(buf[7:11], s.Mtime)
	binary.LittleEndian.PutUint32(buf[11:15], s.Ctime)
	return buf
}

// UnpackStatRecord decodes a packed stat record.
func UnpackStatRecord(b []byte) (StatRecord, error) {
	if len(b) < StatRecordLen {
		return StatRecord{}, errRunt
	}
	return StatRecord{
		Flags: StatFlags(b[0]),
		Mode:  binary.LittleEndian.Uint16(b[1:3]),
		Size:  binary.LittleEndian.Uint32(b[3:7]),
		Mtime: binary.LittleEndian.Uint32(b[7:11]),
		Ctime: binary.LittleEndian.Uint32(b[11:15]),
	}, nil
}

// PackMaxPacket serializes a 32-bit little-endian max_packet value (M
// opcode response payload).
func PackMaxPacket(n int) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(n))
	return buf
}

// UnpackMaxPacket decodes the M opcode response payload.
func UnpackMaxPacket(b []byte) (int, error) {
	if len(b) < 4 {
		return 0, errRunt
	}
	return int(binary.LittleEndian.Uint32(b)), nil
}
