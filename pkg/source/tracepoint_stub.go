//go:build linux && !ebpf

package source

import (
	"fmt"

	"github.com/clrkwllms/stalld/pkg/model"
)

// TracepointSource is a stand-in for the real eBPF-backed backend in
// tracepoint.go. The default build carries no bpf2go-generated bindings
// (those require clang and bpf2go at build time), so Init always fails
// with ErrUnavailable; build with -tags ebpf after running the
// go:generate directive in tracepoint.go to get the real backend.
type TracepointSource struct{}

// NewTracepoint constructs the stub TracepointSource. Call Init before
// Snapshot; Init always fails on this build.
func NewTracepoint() *TracepointSource {
	return &TracepointSource{}
}

func (s *TracepointSource) Init() error {
	return fmt.Errorf("tracepoint: built without the ebpf tag: %w", ErrUnavailable)
}

func (s *TracepointSource) Close() error { return nil }

func (s *TracepointSource) HasStarvingCandidate(cs model.CpuState) bool {
	return len(cs.Waiting) > 0
}

func (s *TracepointSource) Snapshot(cpus []int) map[int]model.CpuState {
	return nil
}
