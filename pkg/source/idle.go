//go:build linux

package source

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// IdleGate reads /proc/stat's per-CPU cumulative idle-tick counter and
// reports whether that counter advanced since the last observation.
// The gate retains one integer of state per CPU.
type IdleGate struct {
	mu      sync.Mutex
	enabled bool
	seen    map[int]uint64
	path    string
}

// NewIdleGate constructs a gate. When enabled is false, Busy always
// returns true (the gate is a no-op pass-through).
func NewIdleGate(enabled bool) *IdleGate {
	return &IdleGate{enabled: enabled, seen: make(map[int]uint64), path: "/proc/stat"}
}

// Busy returns true iff the idle-tick counter for cpu strictly increased
// since the last call for that cpu, or this is the first call for cpu
// (the baseline-cycle guarantee), or the gate is disabled.
func (g *IdleGate) Busy(cpu int) bool {
	if !g.enabled {
		return true
	}

	idle, err := readCPUIdleTicks(g.path, cpu)
	if err != nil {
		// Cannot determine idleness; fail open so the CPU is still
		// sampled rather than silently starved of observation.
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	prev, ok := g.seen[cpu]
	g.seen[cpu] = idle
	if !ok {
		return true
	}
	return idle > prev
}

// readCPUIdleTicks parses the "cpu<N> ..." line for cpu and returns the
// 4th field (zero-indexed after the CPU token), the cumulative idle tick
// count.
func readCPUIdleTicks(path string, cpu int) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	want := fmt.Sprintf("cpu%d", cpu)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || fields[0] != want {
			continue
		}
		if len(fields) < 6 {
			return 0, fmt.Errorf("source: short /proc/stat line for %s", want)
		}
		// fields[0] is the "cpu<N>" token; the idle counter is the 4th
		// value after it, i.e. fields[4] (user, nice, system, idle).
		return strconv.ParseUint(fields[4], 10, 64)
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("source: no /proc/stat line for %s", want)
}
