package source

import (
	"errors"

	"github.com/clrkwllms/stalld/pkg/model"
)

// ErrUnavailable is returned by Init when a backend cannot run on this
// host at all (missing debugfs/procfs dump, missing BTF/tracepoints).
// Under automatic source selection, cmd/stalld reports both backends
// failing as a boost.EnvironmentError.
var ErrUnavailable = errors.New("source: unavailable on this host")

// Source is the Runqueue Source abstraction. A
// Source is initialized once at startup and never swapped mid-run.
type Source interface {
	// Init performs one-shot setup. It returns an error wrapping
	// ErrUnavailable if this backend cannot run on the host.
	Init() error

	// Snapshot returns the freshly observed CpuState for each requested
	// CPU. Whole-system backends perform one underlying read and slice it
	// per CPU; per-CPU backends read each CPU independently. A CPU that
	// fails to snapshot is simply absent from the returned map: a
	// per-cycle, per-CPU error drops only that CPU from the current
	// cycle.
	Snapshot(cpus []int) map[int]model.CpuState

	// HasStarvingCandidate is a cheap pre-filter: it reports whether cs is
	// even worth running the full Task Merger / Starvation Detector pass
	// over. A false negative would hide real starvation, so backends must
	// only return false when the waiting list is provably empty.
	HasStarvingCandidate(cs model.CpuState) bool

	// Close releases backend resources (eBPF links/maps, open files).
	Close() error
}
