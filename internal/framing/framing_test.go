package framing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iluksbr/filerelay/internal/framing"
	"github.com/iluksbr/filerelay/internal/transport/null"
)

func TestSequenceByteMonotonic(t *testing.T) {
	a, b := null.NewPair()
	sender := framing.New(a)

	for i := 0; i < 5; i++ {
		require.NoError(t, sender.Send([]byte{byte(i)}))
	}
	// Read the raw datagrams so the sequence byte itself is visible:
	// sequence i followed by payload byte i.
	for i := 0; i < 5; i++ {
		raw, err := b.Receive()
		require.NoError(t, err)
		require.Equal(t, []byte{byte(i), byte(i)}, raw)
	}
}

func TestDuplicateFrameSuppressed(t *testing.T) {
	a, b := null.NewPair()

	// Send the exact same raw (sequence-prefixed) datagram twice on the
	// underlying transport, bypassing the Framer's own seq counter, to
	// simulate a replayed datagram (spec §4.2).
	raw := []byte{5, 'L', 0, '/', 'd', 'a', 't', 'a'}
	require.NoError(t, a.Send(raw))
	require.NoError(t, a.Send(raw))
	require.NoError(t, a.Send([]byte{6, 'N', 0}))

	receiver := framing.New(b)
	first, err := receiver.Receive()
	require.NoError(t, err)
	require.Equal(t, raw[1:], first)

	second, err := receiver.Receive()
	require.NoError(t, err)
	require.Equal(t, []byte{'N', 0}, second)
}
