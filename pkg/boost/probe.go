//go:build linux

package boost

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/clrkwllms/stalld/pkg/model"
)

// probeRuntime and probePeriod are the vanishingly small attribute values
// used for the no-op deadline probe; they are restored immediately and
// never observed by a scheduling decision.
const (
	probeRuntime = 1000               // 1us
	probePeriod  = uint64(time.Second) // 1s, a standard period
)

// ProbeMethod runs the one-shot Method Probe: attempt a no-op
// SCHED_DEADLINE attribute set on the calling thread, then restore.
// forceFixedPriority bypasses the probe outright.
func ProbeMethod(forceFixedPriority bool) model.Method {
	if forceFixedPriority {
		return model.MethodFixedPriority
	}

	tid := unix.Gettid()
	saved, err := saveAttrs(tid)
	if err != nil {
		return model.MethodFixedPriority
	}

	if err := applyDeadline(tid, probeRuntime, probePeriod); err != nil {
		return model.MethodFixedPriority
	}

	// Best-effort restore; if this fails the thread is left under a
	// 1us/1s deadline budget, which starves the process that failed to
	// restore its own scheduling attributes. The failure is not reported
	// to the caller.
	_ = restoreAttrs(tid, saved)

	return model.MethodDeadline
}
