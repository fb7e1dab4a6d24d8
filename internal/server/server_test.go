package server_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iluksbr/filerelay/internal/fsadapter"
	"github.com/iluksbr/filerelay/internal/framing"
	"github.com/iluksbr/filerelay/internal/relaylog"
	"github.com/iluksbr/filerelay/internal/relaymetrics"
	"github.com/iluksbr/filerelay/internal/server"
	"github.com/iluksbr/filerelay/internal/transport/null"
	"github.com/iluksbr/filerelay/internal/wire"
)

// harness wires a Server over a loopback pair and hands back the
// client-side Framer used to drive it.
type harness struct {
	t      *testing.T
	client *framing.Framer
	srv    *server.Server
}

func newHarness(t *testing.T, root string) *harness {
	t.Helper()
	clientT, serverT := null.NewPair()

	sandbox, err := fsadapter.NewSandbox([]fsadapter.Prefix{{Real: root}})
	require.NoError(t, err)

	log := relaylog.Component(relaylog.New(io.Discard, logrus.ErrorLevel), "test")
	metrics := relaymetrics.NewServerMetrics(prometheus.NewRegistry())

	srv := server.New(serverT, sandbox, metrics, log)
	go srv.Serve()

	return &harness{t: t, client: framing.New(clientT), srv: srv}
}

func (h *harness) roundTrip(req []byte) wire.Frame {
	h.t.Helper()
	require.NoError(h.t, h.client.Send(req))
	raw := h.recvNonNil()
	frame, err := wire.Decode(raw)
	require.NoError(h.t, err)
	return frame
}

func (h *harness) recvNonNil() []byte {
	h.t.Helper()
	for i := 0; i < 50; i++ {
		raw, err := h.client.Receive()
		require.NoError(h.t, err)
		if raw != nil {
			return raw
		}
		time.Sleep(time.Millisecond)
	}
	h.t.Fatal("no response received")
	return nil
}

func TestNoop(t *testing.T) {
	h := newHarness(t, t.TempDir())
	frame := h.roundTrip(wire.Encode(wire.OpNoop, 0, nil))
	require.Equal(t, wire.OpLast, frame.Op)
	require.Empty(t, frame.Payload)
}

func TestMaxPacket(t *testing.T) {
	h := newHarness(t, t.TempDir())
	frame := h.roundTrip(wire.Encode(wire.OpMaxPacket, 0, nil))
	require.Equal(t, wire.OpLast, frame.Op)
	n, err := wire.UnpackMaxPacket(frame.Payload)
	require.NoError(t, err)
	require.Equal(t, 512, n)
}

func TestGetSmallFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hi"), 0o644))

	h := newHarness(t, root)
	frame := h.roundTrip(wire.Encode(wire.OpGet, 0, []byte(filepath.Join(root, "hello.txt"))))
	require.Equal(t, wire.OpLast, frame.Op)
	require.Equal(t, []byte("hi"), frame.Payload)
}

func TestGetLargeFileFragmentsAndContinue(t *testing.T) {
	root := t.TempDir()
	content := bytes.Repeat([]byte("x"), 1600)
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.bin"), content, 0o644))

	h := newHarness(t, root)
	frame := h.roundTrip(wire.Encode(wire.OpGet, 0, []byte(filepath.Join(root, "big.bin"))))
	require.Equal(t, wire.OpData, frame.Op)

	var out []byte
	out = append(out, frame.Payload...)
	id := frame.TransID
	for frame.Op == wire.OpData {
		frame = h.roundTrip(wire.Encode(wire.OpContinue, id, nil))
		out = append(out, frame.Payload...)
	}
	require.Equal(t, wire.OpLast, frame.Op)
	require.Equal(t, content, out)
}

func TestListDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("b"), 0o644))

	h := newHarness(t, root)
	frame := h.roundTrip(wire.Encode(wire.OpList, 0, []byte(root)))
	require.Equal(t, wire.OpLast, frame.Op)
	names := bytes.Split(frame.Payload, []byte{0})
	require.ElementsMatch(t, []string{"a.txt", "b.txt"}, toStrings(names))
}

func TestListRegularFileReturnsDoubleNul(t *testing.T) {
	root := t.TempDir()
	f := filepath.Join(root, "only.txt")
	require.NoError(t, os.WriteFile(f, []byte("z"), 0o644))

	h := newHarness(t, root)
	frame := h.roundTrip(wire.Encode(wire.OpList, 0, []byte(f)))
	require.Equal(t, wire.OpLast, frame.Op)
	require.Equal(t, []byte{0, 0}, frame.Payload)
}

func TestPathEscapeRejected(t *testing.T) {
	root := t.TempDir()
	h := newHarness(t, root)
	frame := h.roundTrip(wire.Encode(wire.OpList, 0, []byte(filepath.Join(root, "../"))))
	require.Equal(t, wire.OpError, frame.Op)
}

func TestHashRoundTrip(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), []byte("payload"), 0o644))

	h := newHarness(t, root)
	path := filepath.Join(root, "f")
	first := h.roundTrip(wire.Encode(wire.OpHash, 0, []byte(path)))
	second := h.roundTrip(wire.Encode(wire.OpHash, 0, []byte(path)))
	require.Equal(t, first.Payload, second.Payload)
	require.NotEmpty(t, first.Payload)
}

func TestResetIsIdempotent(t *testing.T) {
	h := newHarness(t, t.TempDir())
	first := h.roundTrip(wire.Encode(wire.OpReset, 0, nil))
	second := h.roundTrip(wire.Encode(wire.OpReset, 0, nil))
	require.Equal(t, wire.OpLast, first.Op)
	require.Equal(t, wire.OpLast, second.Op)
}

func TestPushAccumulatesOversizePath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hi"), 0o644))

	h := newHarness(t, root)
	full := filepath.Join(root, "hello.txt")

	// Force a push by sending the path in two halves, acked with 'c'.
	half := len(full) / 2
	ack := h.roundTrip(wire.Encode(wire.OpPush, 0, []byte(full[:half])))
	require.Equal(t, wire.OpPushAck, ack.Op)

	frame := h.roundTrip(wire.Encode(wire.OpGet, 0, []byte(full[half:])))
	require.Equal(t, wire.OpLast, frame.Op)
	require.Equal(t, []byte("hi"), frame.Payload)
}

func TestUnknownOpcodeReturnsError(t *testing.T) {
	h := newHarness(t, t.TempDir())
	frame := h.roundTrip(wire.Encode(wire.Opcode('?'), 0, nil))
	require.Equal(t, wire.OpError, frame.Op)
}

func toStrings(bs [][]byte) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = string(b)
	}
	return out
}
