// Package server implements the server engine (spec §4.5–§4.9):
// command dispatch, the transaction slot pool, the stat cache, and the
// single-threaded cooperative request loop, grounded in the teacher's
// serverudp.Server dispatch loop (internal/serverudp/serverudp.go),
// generalized from its REQ/META/DATA/NACK table to this protocol's
// opcode table and slot model.
package server

import (
	"bytes"
	"errors"
	"os"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/iluksbr/filerelay/internal/config"
	"github.com/iluksbr/filerelay/internal/fsadapter"
	"github.com/iluksbr/filerelay/internal/framing"
	"github.com/iluksbr/filerelay/internal/relayerr"
	"github.com/iluksbr/filerelay/internal/relaymetrics"
	"github.com/iluksbr/filerelay/internal/transport"
	"github.com/iluksbr/filerelay/internal/wire"
)

// Server owns one link's worth of protocol state: the path sandbox,
// the slot pool, the stat cache, and the in-flight P-frame
// accumulation buffer. It is not safe for concurrent use by more than
// one goroutine driving Serve, matching the protocol's single-threaded
// cooperative scheduling (spec §5).
type Server struct {
	sandbox *fsadapter.Sandbox
	framer  *framing.Framer
	slots   *slotPool
	cache   *statCache
	metrics *relaymetrics.ServerMetrics
	log     *logrus.Entry

	pending []byte
	stop    chan struct{}
}

// New constructs a Server over t, serving files rooted at sandbox.
func New(t transport.Transport, sandbox *fsadapter.Sandbox, m *relaymetrics.ServerMetrics, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		sandbox: sandbox,
		framer:  framing.New(t),
		slots:   &slotPool{metrics: m},
		cache:   newStatCache(m),
		metrics: m,
		log:     log.WithField("session", xid.New().String()),
		stop:    make(chan struct{}),
	}
}

// Serve runs the request loop until the transport reports
// TransportFatal. One frame is handled per iteration; there is no
// concurrent request handling (spec §5).
func (s *Server) Serve() error {
	go s.cache.runTicker(s.stop)
	defer close(s.stop)

	for {
		raw, err := s.framer.Receive()
		if err != nil {
			var fatal *relayerr.TransportFatal
			if !errors.As(err, &fatal) {
				s.log.WithError(err).Debug("dropping malformed datagram")
				continue
			}
			s.log.WithError(err).Warn("transport fatal, server loop exiting")
			return err
		}
		if raw == nil {
			continue // timeout; keep listening
		}
		s.handleFrame(raw)
	}
}

// Close frees every slot. It does not stop Serve or the background
// tick goroutine; the tick goroutine stops when Serve returns.
func (s *Server) Close() {
	s.slots.freeAll()
}

// ActiveSlots reports the number of currently occupied transaction
// slots, for diagnostics.
func (s *Server) ActiveSlots() int { return s.slots.activeCount() }

func (s *Server) send(frame []byte) {
	if err := s.framer.Send(frame); err != nil {
		s.log.WithError(err).Warn("send failed")
		return
	}
	if s.metrics != nil {
		s.metrics.FramesSent.Inc()
	}
}

func (s *Server) sendError(transID byte, reason string) {
	s.log.WithField("reason", reason).Debug("replying z")
	s.send(wire.Encode(wire.OpError, transID, []byte(reason)))
}

func (s *Server) sendEmpty(transID byte) {
	s.send(wire.Encode(wire.OpLast, transID, nil))
}

// handleFrame dispatches one decoded application frame (spec §4.5).
func (s *Server) handleFrame(raw []byte) {
	frame, err := wire.Decode(raw)
	if err != nil {
		s.sendError(wire.UnslottedTransID, "runt frame")
		return
	}
	if s.metrics != nil {
		s.metrics.FramesReceived.Inc()
	}

	switch frame.Op {
	case wire.OpPush:
		s.handlePush(frame)
	case wire.OpContinue:
		s.pending = nil
		s.handleContinue(frame.TransID)
	case wire.OpSetPriority:
		s.pending = nil
		s.sendEmpty(wire.UnslottedTransID)
	case wire.OpNoop:
		s.pending = nil
		s.sendEmpty(wire.UnslottedTransID)
	case wire.OpMaxPacket:
		s.pending = nil
		s.send(wire.Encode(wire.OpLast, wire.UnslottedTransID, wire.PackMaxPacket(s.framer.MaxPacket())))
	case wire.OpReset:
		s.pending = nil
		s.slots.freeAll()
		s.sendEmpty(wire.UnslottedTransID)
	case wire.OpList, wire.OpGet, wire.OpHash, wire.OpReadlink, wire.OpStat:
		path := string(append(s.pending, frame.Payload...))
		s.pending = nil
		s.dispatchPathCommand(frame.Op, path)
	default:
		s.pending = nil
		s.sendError(wire.UnslottedTransID, "unknown opcode")
	}
}

// handlePush accumulates one P-frame payload, bounding the total at
// MaxFilePathLen (spec §4.5, §3).
func (s *Server) handlePush(frame wire.Frame) {
	combined := append(append([]byte(nil), s.pending...), frame.Payload...)
	if len(combined) > config.MaxFilePathLen {
		s.pending = nil
		s.sendError(wire.UnslottedTransID, "path too long")
		return
	}
	s.pending = combined
	s.send(wire.Encode(wire.OpPushAck, wire.UnslottedTransID, nil))
}

// handleContinue delivers the next fragment of slot arg (the C opcode).
func (s *Server) handleContinue(arg byte) {
	op, chunk, ok, err := s.slots.nextFragment(arg, s.framer.MaxPacket())
	if err != nil {
		s.sendError(arg, "read failed: "+err.Error())
		return
	}
	if !ok {
		s.sendError(arg, "no such transaction")
		return
	}
	s.send(wire.Encode(op, arg, chunk))
	if s.metrics != nil {
		s.metrics.BytesSent.Add(float64(len(chunk)))
	}
}

// dispatchPathCommand handles the five opcodes whose payload is a
// sandbox path: L, G, H, K, S.
func (s *Server) dispatchPathCommand(op wire.Opcode, path string) {
	resolved, err := s.sandbox.Resolve(path)
	if err != nil {
		if s.metrics != nil {
			s.metrics.SandboxRejections.Inc()
		}
		s.sendError(wire.UnslottedTransID, err.Error())
		return
	}

	switch op {
	case wire.OpList:
		s.handleList(resolved)
	case wire.OpGet:
		s.handleGet(resolved)
	case wire.OpHash:
		s.handleHash(resolved)
	case wire.OpReadlink:
		s.handleReadlink(resolved)
	case wire.OpStat:
		s.handleStat(resolved)
	}
}

// handleList implements L (spec §4.5, §4.8): a regular file yields
// "\0\0"; a directory yields its NUL-separated surviving entry names,
// opportunistically seeding the stat cache from each.
func (s *Server) handleList(dir fsadapter.Resolved) {
	if dir.IsRegular {
		s.sendBufferResponse([]byte{0, 0})
		return
	}

	entries, err := s.sandbox.List(dir)
	if err != nil {
		s.sendError(wire.UnslottedTransID, err.Error())
		return
	}

	names := make([][]byte, 0, len(entries))
	for _, e := range entries {
		names = append(names, []byte(e.Name))
		if rec, serr := fsadapter.StatPath(e.Resolved); serr == nil {
			s.cache.put(e.Resolved.RealPath, rec)
		}
	}
	s.sendBufferResponse(bytes.Join(names, []byte{0}))
}

// handleGet implements G (spec §4.7): a regular file is opened and
// streamed via a reserved slot; the first fragment is emitted inline.
func (s *Server) handleGet(resolved fsadapter.Resolved) {
	if !resolved.IsRegular {
		s.sendError(wire.UnslottedTransID, "not a regular file")
		return
	}

	f, err := os.Open(resolved.RealPath)
	if err != nil {
		s.sendError(wire.UnslottedTransID, "open failed: "+err.Error())
		return
	}

	id, ok := s.slots.allocate()
	if !ok {
		f.Close()
		if s.metrics != nil {
			s.metrics.SlotPoolExhausted.Inc()
		}
		s.sendError(wire.UnslottedTransID, "slot pool exhausted")
		return
	}
	if s.metrics != nil {
		s.metrics.SlotsAllocated.Inc()
	}
	s.slots.setFile(id, f)
	s.handleContinue(id)
}

func (s *Server) handleHash(resolved fsadapter.Resolved) {
	if !resolved.IsRegular {
		s.sendError(wire.UnslottedTransID, "not a regular file")
		return
	}
	sum, err := fsadapter.HashFile(resolved.RealPath)
	if err != nil {
		s.sendError(wire.UnslottedTransID, "hash failed: "+err.Error())
		return
	}
	s.sendBufferResponse([]byte(sum))
}

func (s *Server) handleReadlink(resolved fsadapter.Resolved) {
	rel, err := s.sandbox.ReadlinkResolved(resolved)
	if err != nil {
		s.sendError(wire.UnslottedTransID, err.Error())
		return
	}
	s.sendBufferResponse([]byte(rel))
}

func (s *Server) handleStat(resolved fsadapter.Resolved) {
	if rec, ok := s.cache.get(resolved.RealPath); ok {
		s.sendBufferResponse(rec.Pack())
		return
	}
	rec, err := fsadapter.StatPath(resolved)
	if err != nil {
		s.sendError(wire.UnslottedTransID, "stat failed: "+err.Error())
		return
	}
	s.cache.put(resolved.RealPath, rec)
	s.sendBufferResponse(rec.Pack())
}

// sendBufferResponse sends buf as a single "l" frame if it fits, else
// reserves a slot and streams it via the buffer-backed fragment path
// (spec §4.6).
func (s *Server) sendBufferResponse(buf []byte) {
	maxPacket := s.framer.MaxPacket()
	if len(buf)+2 <= maxPacket {
		s.send(wire.Encode(wire.OpLast, wire.UnslottedTransID, buf))
		if s.metrics != nil {
			s.metrics.BytesSent.Add(float64(len(buf)))
		}
		return
	}

	id, ok := s.slots.allocate()
	if !ok {
		if s.metrics != nil {
			s.metrics.SlotPoolExhausted.Inc()
		}
		s.sendError(wire.UnslottedTransID, "slot pool exhausted")
		return
	}
	if s.metrics != nil {
		s.metrics.SlotsAllocated.Inc()
	}
	s.slots.setBuffer(id, buf)
	s.handleContinue(id)
}
