//go:build linux && ebpf

package source

import (
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/rlimit"

	"github.com/clrkwllms/stalld/pkg/model"
)

// Regenerate the per-arch object files with:
//
//go:generate go run github.com/cilium/ebpf/cmd/bpf2go tracepoint ./bpf/tracepoint.c -- -O2 -target bpf

// TracepointSource reads per-CPU runqueue state populated by kernel-side
// eBPF programs attached to the sched_wakeup, sched_switch,
// sched_migrate_task, and sched_process_exit tracepoints. It may miss
// tasks not in TASK_RUNNING state at sample time; the core treats this
// source as having no stronger contract than tid and ctxsw identity.
//
// Built only with the ebpf tag, since it depends on tracepointObjects and
// loadTracepointObjects generated by bpf2go from bpf/tracepoint.c (run
// the go:generate directive above with clang and bpf2go on PATH). Without
// the tag, NewTracepoint returns the stub in tracepoint_stub.go.
type TracepointSource struct {
	objs    tracepointObjects
	links   []link.Link
	numCPUs int
}

// NewTracepoint constructs an unattached TracepointSource. Call Init
// before Snapshot.
func NewTracepoint() *TracepointSource {
	return &TracepointSource{}
}

func (s *TracepointSource) Init() error {
	if err := rlimit.RemoveMemlock(); err != nil {
		return fmt.Errorf("tracepoint: remove memlock rlimit: %w", err)
	}

	if err := loadTracepointObjects(&s.objs, nil); err != nil {
		return fmt.Errorf("tracepoint: load objects: %w: %w", err, ErrUnavailable)
	}

	attach := []struct {
		group, name string
		prog        *ebpf.Program
	}{
		{"sched", "sched_wakeup", s.objs.HandleSchedWakeup},
		{"sched", "sched_migrate_task", s.objs.HandleSchedMigrateTask},
		{"sched", "sched_switch", s.objs.HandleSchedSwitch},
		{"sched", "sched_process_exit", s.objs.HandleSchedProcessExit},
	}

	for _, a := range attach {
		l, err := link.Tracepoint(a.group, a.name, a.prog, nil)
		if err != nil {
			s.Close()
			return fmt.Errorf("tracepoint: attach %s/%s: %w: %w", a.group, a.name, err, ErrUnavailable)
		}
		s.links = append(s.links, l)
	}

	n, err := ebpf.PossibleCPU()
	if err != nil {
		s.Close()
		return fmt.Errorf("tracepoint: possible cpu count: %w", err)
	}
	s.numCPUs = n

	return nil
}

func (s *TracepointSource) Close() error {
	for _, l := range s.links {
		l.Close()
	}
	s.links = nil
	return s.objs.Close()
}

// HasStarvingCandidate mirrors the textual source's inspection of the
// already-parsed waiting list; the tracepoint source has no cheaper signal.
func (s *TracepointSource) HasStarvingCandidate(cs model.CpuState) bool {
	return len(cs.Waiting) > 0
}

// Snapshot reads the per-CPU runqueue map for each requested CPU.
func (s *TracepointSource) Snapshot(cpus []int) map[int]model.CpuState {
	raw := make([]cpuRunqueueWireBytes, s.numCPUs)
	var zero uint32
	if err := s.objs.Runqueues.Lookup(&zero, &raw); err != nil {
		return nil
	}

	out := make(map[int]model.CpuState, len(cpus))
	for _, cpu := range cpus {
		if cpu < 0 || cpu >= len(raw) {
			continue
		}
		rq, err := decodeRunqueue(raw[cpu][:])
		if err != nil {
			continue
		}
		out[cpu] = toCpuState(cpu, rq)
	}
	return out
}
