//go:build linux

package source

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeRunqueue(t *testing.T, rq cpuRunqueueWire) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, rq))
	require.Equal(t, cpuRunqueueWireSize, buf.Len())
	return buf.Bytes()
}

func TestDecodeRunqueue_RoundTrips(t *testing.T) {
	var rq cpuRunqueueWire
	rq.NrRunning = 2
	rq.NrRTRunning = 1
	rq.Queued[0] = queuedTaskWire{TID: 42, TGID: 7, Prio: 10, Ctxsw: 99}
	copy(rq.Queued[0].Comm[:], "poller")
	rq.Queued[1] = queuedTaskWire{TID: 43, TGID: 7, Prio: 20, Ctxsw: 5}
	copy(rq.Queued[1].Comm[:], "helper")

	got, err := decodeRunqueue(encodeRunqueue(t, rq))
	require.NoError(t, err)
	require.Equal(t, uint32(2), got.NrRunning)
	require.Equal(t, uint32(1), got.NrRTRunning)
	require.Equal(t, uint32(42), got.Queued[0].TID)
	require.Equal(t, uint64(99), got.Queued[0].Ctxsw)
}

func TestToCpuState_TruncatesToNrRunning(t *testing.T) {
	var rq cpuRunqueueWire
	rq.NrRunning = 1
	rq.Queued[0] = queuedTaskWire{TID: 1, Prio: 5, Ctxsw: 3}
	copy(rq.Queued[0].Comm[:], "one\x00garbage")
	rq.Queued[1] = queuedTaskWire{TID: 2}

	cs := toCpuState(4, rq)
	require.Equal(t, 4, cs.CPUID)
	require.Len(t, cs.Waiting, 1, "entries beyond NrRunning are stale and must be ignored")
	require.Equal(t, "one", cs.Waiting[0].Comm)
	require.Equal(t, 1, cs.Waiting[0].TID)
}

func TestCommString_StopsAtNUL(t *testing.T) {
	b := make([]byte, 16)
	copy(b, "dpdk-worker")
	require.Equal(t, "dpdk-worker", commString(b))
}

func TestCommString_FullWidthNoNUL(t *testing.T) {
	b := bytes.Repeat([]byte("x"), 16)
	require.Equal(t, "xxxxxxxxxxxxxxxx", commString(b))
}
