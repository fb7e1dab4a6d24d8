// slotPool implements the fixed-size transaction slot pool of spec
// §4.6: slot 0 reserved, random-start forward scan for allocation, a
// purge-then-retry-once policy when the pool is full, and buffer- or
// file-backed fragment emission.
package server

import (
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/iluksbr/filerelay/internal/config"
	"github.com/iluksbr/filerelay/internal/relaymetrics"
	"github.com/iluksbr/filerelay/internal/wire"
)

// slot holds either a buffered byte sequence with a read offset, or an
// open file handle, plus a creation timestamp (spec §3).
type slot struct {
	created time.Time

	// buffer-backed
	buf       []byte
	bufOffset int

	// file-backed
	file *os.File
}

func (s *slot) empty() bool { return s.buf == nil && s.file == nil }

func (s *slot) close() {
	if s.file != nil {
		_ = s.file.Close()
	}
	s.buf = nil
	s.bufOffset = 0
	s.file = nil
}

// slotPool is the server's [1, MaxTransactions-1] slot array. Slot 0
// is never stored here; trans-id 0 always means "unslotted".
type slotPool struct {
	mu      sync.Mutex
	slots   [config.MaxTransactions]slot
	metrics *relaymetrics.ServerMetrics
}

// allocate picks a uniformly random start index in [1,
// MaxTransactions-1], scans forward for an empty slot, and on failure
// runs one purge pass before retrying once (spec §4.6).
func (p *slotPool) allocate() (id byte, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.scanForEmpty(); ok {
		return id, true
	}
	p.purgeLocked(config.SlotPurgeAge)
	return p.scanForEmpty()
}

func (p *slotPool) scanForEmpty() (byte, bool) {
	n := config.MaxTransactions - 1
	start := 1 + rand.Intn(n)
	for i := 0; i < n; i++ {
		idx := 1 + (start-1+i)%n
		if p.slots[idx].empty() {
			p.slots[idx] = slot{created: time.Now()}
			p.setGaugeLocked()
			return byte(idx), true
		}
	}
	return 0, false
}

// setGaugeLocked refreshes the ActiveSlots gauge. Callers must hold mu.
func (p *slotPool) setGaugeLocked() {
	if p.metrics == nil {
		return
	}
	n := 0
	for i := 1; i < config.MaxTransactions; i++ {
		if !p.slots[i].empty() {
			n++
		}
	}
	p.metrics.ActiveSlots.Set(float64(n))
}

// purgeLocked frees every slot older than maxAge. Callers must hold mu.
func (p *slotPool) purgeLocked(maxAge time.Duration) (purged int) {
	now := time.Now()
	for i := 1; i < config.MaxTransactions; i++ {
		if !p.slots[i].empty() && now.Sub(p.slots[i].created) > maxAge {
			p.slots[i].close()
			purged++
		}
	}
	if purged > 0 {
		if p.metrics != nil {
			p.metrics.SlotsPurged.Add(float64(purged))
		}
		p.setGaugeLocked()
	}
	return purged
}

// free releases slot id, closing any open file.
func (p *slotPool) free(id byte) {
	if id == wire.UnslottedTransID {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots[id].close()
	p.setGaugeLocked()
}

// freeAll releases every slot unconditionally (the Z opcode, spec §4.5).
// It is idempotent.
func (p *slotPool) freeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 1; i < config.MaxTransactions; i++ {
		p.slots[i].close()
	}
	p.setGaugeLocked()
}

// setBuffer installs a buffered response into slot id.
func (p *slotPool) setBuffer(id byte, buf []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots[id].buf = buf
	p.slots[id].bufOffset = 0
}

// setFile installs an open file into slot id.
func (p *slotPool) setFile(id byte, f *os.File) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots[id].file = f
}

// activeCount reports how many slots are currently non-empty
// (backs Server.ActiveSlots).
func (p *slotPool) activeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for i := 1; i < config.MaxTransactions; i++ {
		if !p.slots[i].empty() {
			n++
		}
	}
	return n
}

// nextFragment emits the next fragment of slot id, whichever kind it
// holds (spec §4.6). Buffer-backed: if the remainder fits in
// max_packet-2 bytes, it is the terminal "l" fragment and the slot is
// freed; otherwise "d" and the offset advances. File-backed: a short
// read (including EOF) is the terminal "l" fragment and frees the
// slot; a full read is "d" and the slot stays open.
func (p *slotPool) nextFragment(id byte, maxPacket int) (op wire.Opcode, chunk []byte, ok bool, err error) {
	p.mu.Lock()
	s := &p.slots[id]
	switch {
	case s.buf != nil:
		remaining := s.buf[s.bufOffset:]
		if len(remaining)+2 <= maxPacket {
			chunk = append([]byte(nil), remaining...)
			s.close()
			p.setGaugeLocked()
			p.mu.Unlock()
			return wire.OpLast, chunk, true, nil
		}
		n := maxPacket - 2
		chunk = append([]byte(nil), remaining[:n]...)
		s.bufOffset += n
		p.mu.Unlock()
		return wire.OpData, chunk, true, nil
	case s.file != nil:
		f := s.file
		p.mu.Unlock()

		want := maxPacket - 2
		buf := make([]byte, want)
		n, rerr := readFull(f, buf)
		if rerr != nil && rerr.Error() != "EOF" {
			p.free(id)
			return 0, nil, false, rerr
		}
		if n < want {
			p.free(id)
			return wire.OpLast, buf[:n], true, nil
		}
		return wire.OpData, buf[:n], true, nil
	default:
		p.mu.Unlock()
		return 0, nil, false, nil
	}
}

// readFull reads until buf is full, EOF, or a non-EOF error — unlike
// io.ReadFull, io.EOF with n>0 partial data is not itself an error to
// the caller here; it is forwarded so nextFragment can tell short
// reads (terminal) from full reads (more to come).
func readFull(f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}
