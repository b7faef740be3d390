//go:build linux

package source

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/clrkwllms/stalld/pkg/model"
)

const maxQueuedTask = 128

// queuedTaskWire mirrors struct queued_task in bpf/tracepoint.c byte for
// byte; field order and widths must not drift from the C definition.
type queuedTaskWire struct {
	TID   uint32
	TGID  uint32
	Comm  [16]byte
	Prio  int32
	_     uint32
	Ctxsw uint64
}

// cpuRunqueueWire mirrors struct cpu_runqueue.
type cpuRunqueueWire struct {
	NrRunning   uint32
	NrRTRunning uint32
	Queued      [maxQueuedTask]queuedTaskWire
}

const queuedTaskWireSize = 4 + 4 + 16 + 4 + 4 + 8
const cpuRunqueueWireSize = 4 + 4 + maxQueuedTask*queuedTaskWireSize

// cpuRunqueueWireBytes is the fixed-width raw form used for per-CPU map
// lookups; cilium/ebpf requires a concrete sized type per possible CPU.
type cpuRunqueueWireBytes [cpuRunqueueWireSize]byte

func decodeRunqueue(b []byte) (cpuRunqueueWire, error) {
	var rq cpuRunqueueWire
	r := bytes.NewReader(b)
	if err := binary.Read(r, binary.LittleEndian, &rq); err != nil {
		return rq, fmt.Errorf("tracepoint: decode runqueue: %w", err)
	}
	return rq, nil
}

func toCpuState(cpu int, rq cpuRunqueueWire) model.CpuState {
	n := int(rq.NrRunning)
	if n > maxQueuedTask {
		n = maxQueuedTask
	}
	cs := model.CpuState{
		CPUID:       cpu,
		NrRunning:   int(rq.NrRunning),
		NrRTRunning: int(rq.NrRTRunning),
	}
	for i := 0; i < n; i++ {
		q := rq.Queued[i]
		cs.Waiting = append(cs.Waiting, model.TaskSnapshot{
			TID:   int(q.TID),
			TGID:  int(q.TGID),
			Comm:  commString(q.Comm[:]),
			Prio:  int(q.Prio),
			Ctxsw: q.Ctxsw,
		})
	}
	return cs
}

func commString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
