//go:build linux

package boost

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// RTRuntimeKnob is the kernel knob controlling the maximum runtime, in
// microseconds per period, available to real-time tasks. -1 means
// unbounded.
const RTRuntimeKnob = "/proc/sys/kernel/sched_rt_runtime_us"

// SupervisorSentinel, if present, indicates an external supervisor already
// guarantees unbounded per-unit RT budget; the gate then skips the check
// entirely rather than writing the knob itself.
const SupervisorSentinel = "/run/stalld.rt-supervised"

const unboundedRTRuntime = "-1"

// CheckRTThrottle is the one-shot startup RT-Throttle Gate. It returns an
// *EnvironmentError if the host throttles RT runtime and the daemon
// cannot make it unbounded.
func CheckRTThrottle() error {
	return checkRTThrottle(SupervisorSentinel, RTRuntimeKnob)
}

func checkRTThrottle(sentinelPath, knobPath string) error {
	if _, err := os.Stat(sentinelPath); err == nil {
		return nil
	}

	cur, err := readRTRuntime(knobPath)
	if err != nil {
		return &EnvironmentError{Reason: fmt.Sprintf("reading %s: %v", knobPath, err)}
	}
	if cur < 0 {
		return nil
	}

	if err := os.WriteFile(knobPath, []byte(unboundedRTRuntime), 0o644); err != nil {
		return &EnvironmentError{Reason: fmt.Sprintf("writing unbounded value to %s: %v", knobPath, err)}
	}
	return nil
}

func readRTRuntime(path string) (int64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
}
