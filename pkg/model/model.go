// Package model holds the data shapes shared by every stage of the
// detection-and-boost pipeline: one snapshot of a thread, the retained
// per-CPU working set, and a transient boost session record.
package model

import "time"

// TaskSnapshot is the identity and progress information captured for one
// thread during one sampling pass of a CPU's runqueue.
type TaskSnapshot struct {
	// TID is the thread id. Unique among live threads.
	TID int
	// TGID is the thread-group (process) id. Zero or unknown is permitted;
	// callers must not treat zero as "no process".
	TGID int
	// Comm is the short thread name, at most 15 printable bytes.
	Comm string
	// Prio is the opaque scheduling priority as exposed by the source. Used
	// only for identity fuzz and logging, never for detection logic.
	Prio int
	// Ctxsw is the context-switch counter for this thread at snapshot time.
	Ctxsw uint64
	// Since is the wall-clock time of the earliest snapshot in which this
	// thread was observed as a non-progressing runnable on this CPU.
	Since time.Time
}

// ThreadState describes whether a per-CPU worker has been spawned for a
// CPU by the adaptive strategy.
type ThreadState int

const (
	// Detached means no dedicated worker owns this CPU; the coordinator
	// samples it directly.
	Detached ThreadState = iota
	// Running means a dedicated worker owns this CPU.
	Running
	// Draining means the worker has decided to exit and will transition to
	// Detached once its current cycle completes.
	Draining
)

func (s ThreadState) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	default:
		return "detached"
	}
}

// CpuState is the retained per-CPU working set, carried between cycles.
type CpuState struct {
	CPUID int

	// NrRunning and NrRTRunning are counts from the latest snapshot.
	// Interpretation depends on the source (see pkg/source).
	NrRunning   int
	NrRTRunning int

	// Waiting is the ordered sequence of runnable, not-currently-running
	// tasks. Order is preserved only for deterministic logging.
	Waiting []TaskSnapshot

	// OverloadedCycles counts contiguous cycles this CPU's runqueue showed
	// RT pressure (NrRTRunning > 0). The adaptive scheduler retains it
	// across coordinator passes and spawns a dedicated worker once it
	// crosses overloadSpawnThreshold, even before any single thread's wait
	// crosses half the starvation threshold.
	OverloadedCycles int

	// ThreadState is meaningful only under the adaptive strategy.
	ThreadState ThreadState
}

// Method identifies the mechanism the Boost Engine uses to elevate a
// thread's scheduling attributes.
type Method int

const (
	// MethodDeadline applies SCHED_DEADLINE with a bounded runtime/period.
	MethodDeadline Method = iota
	// MethodFixedPriority applies SCHED_FIFO at a configured priority,
	// time-sliced to emulate a deadline bandwidth bound.
	MethodFixedPriority
)

func (m Method) String() string {
	if m == MethodFixedPriority {
		return "fixed-priority"
	}
	return "deadline"
}

// Strategy identifies one of the three orchestration strategies.
type Strategy int

const (
	// Power is the single-threaded strategy: lowest overhead, requires the
	// deadline method.
	Power Strategy = iota
	// Adaptive spawns per-CPU workers only for CPUs observed overloaded.
	Adaptive
	// Aggressive spawns one worker per monitored CPU up front and never
	// tears them down.
	Aggressive
)

func (s Strategy) String() string {
	switch s {
	case Adaptive:
		return "adaptive"
	case Aggressive:
		return "aggressive"
	default:
		return "power"
	}
}

// SchedAttr is the saved or applied scheduling attribute set for a thread,
// opaque outside pkg/boost beyond what the detector and logs need.
type SchedAttr struct {
	Policy   int
	Priority int
	// Runtime, Period and Deadline are nanoseconds, meaningful only when
	// Policy is the deadline policy.
	Runtime  uint64
	Period   uint64
	Deadline uint64
}

// BoostSession is the transient record created when the Boost Engine
// begins elevating a thread. It MUST be closed (restored) on every path,
// including cancellation and error; see pkg/boost.
type BoostSession struct {
	TID          int
	Method       Method
	Saved        SchedAttr
	DeadlineUTC  time.Time
	OpenedAt     time.Time
}
