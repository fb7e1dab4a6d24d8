// Package usbfs implements the file-descriptor Transport variant for a
// USB FunctionFS bulk endpoint pair, grounded in
// original_source/lib/myfunctionfs.py (read/write fd handling) and in
// runZeroInc-sockstats's pkg/linux/tcpinfo.go for the idiom of driving
// raw syscalls via golang.org/x/sys/unix instead of net.Conn.
//
// Gadget descriptor setup, libusb device discovery, and hotplug
// handling are out of scope (spec §1) — this package only drives an
// already-configured pair of bulk endpoint file descriptors.
package usbfs

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/iluksbr/filerelay/internal/config"
	"github.com/iluksbr/filerelay/internal/relayerr"
	"github.com/iluksbr/filerelay/internal/transport"
)

// DefaultBulkPacketSize is the USB bulk endpoint's hardware packet size (64
// bytes for full-speed, 512 for high-speed; callers configure this to
// match the gadget descriptor actually in use).
const DefaultBulkPacketSize = 512

// Transport drives a pair of open bulk endpoint file descriptors (one
// for OUT/write, one for IN/read — FunctionFS exposes them separately).
type Transport struct {
	readFD, writeFD int
	bulkPacketSize  int
	maxPacket       int
	readBuf         []byte
}

var _ transport.Transport = (*Transport)(nil)

// New wraps an already-opened FunctionFS endpoint pair. bulkPacketSize
// is the hardware max packet size of the underlying bulk endpoints.
func New(readFD, writeFD, bulkPacketSize int) *Transport {
	if bulkPacketSize <= 0 {
		bulkPacketSize = DefaultBulkPacketSize
	}
	return &Transport{
		readFD:         readFD,
		writeFD:        writeFD,
		bulkPacketSize: bulkPacketSize,
		maxPacket:      config.DefaultMaxPacket,
		readBuf:        make([]byte, config.MaxMaxPacket+1),
	}
}

// Send writes b to the OUT endpoint. When len(b) is a non-trivial
// multiple of the bulk packet size but not equal to max_packet, a
// trailing zero-length packet is written to signal end-of-transfer to
// the host-side driver, matching the USB bulk transfer convention.
func (t *Transport) Send(b []byte) error {
	if len(b) > t.maxPacket+1 {
		return nil // dropped: exceeds max_packet+1, spec §4.1
	}
	n, err := unix.Write(t.writeFD, b)
	if err != nil {
		return &relayerr.TransportFatal{Err: fmt.Errorf("usbfs write: %w", err)}
	}
	if n != len(b) {
		return fmt.Errorf("usbfs short write: wrote %d of %d bytes", n, len(b))
	}
	if len(b) != 0 && len(b)%t.bulkPacketSize == 0 && len(b) != t.maxPacket {
		if _, err := unix.Write(t.writeFD, nil); err != nil {
			return &relayerr.TransportFatal{Err: fmt.Errorf("usbfs ZLP write: %w", err)}
		}
	}
	return nil
}

// Receive reads the next datagram via scatter I/O into the pre-
// allocated read buffer. FunctionFS bulk reads do not block on a
// configurable deadline the way a UDP socket does; a zero-length read
// with no error is treated as a timeout (no data pending).
func (t *Transport) Receive() ([]byte, error) {
	iov := []unix.Iovec{{Base: &t.readBuf[0], Len: uint64(len(t.readBuf))}}
	n, _, errno := unix.Syscall(unix.SYS_READV, uintptr(t.readFD), uintptr(unsafe.Pointer(&iov[0])), uintptr(len(iov)))
	if errno != 0 {
		if errno == unix.EAGAIN || errno == unix.EWOULDBLOCK {
			return nil, nil
		}
		return nil, &relayerr.TransportFatal{Err: fmt.Errorf("usbfs readv: %w", errno)}
	}
	if int(n) == 0 {
		return nil, nil
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
