//go:build linux

package source

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/clrkwllms/stalld/pkg/model"
)

// TextualPaths are the absolute paths searched, in order, for the
// kernel-exported sched_debug text dump. The first readable one is used.
var TextualPaths = []string{
	"/sys/kernel/debug/sched/debug",
	"/proc/sched_debug",
}

// ThreadStateProber reports whether tid is currently in the runnable
// (TASK_RUNNING, 'R') state. The default, ProcStatState, reads
// /proc/<tid>/stat. Any IO error excludes the entry.
type ThreadStateProber func(tid int) (running bool, err error)

// columnLayout records the zero-based word offsets of the columns located
// during one-time header auto-detection.
type columnLayout struct {
	task, pid, switches, prio int
	ready                     bool
}

// TextualSource parses the debugfs/procfs plain-text runqueue dump.
// It is a whole-system source: one Snapshot call performs a single read
// and slices the result per requested CPU.
type TextualSource struct {
	path  string
	buf   bytes.Buffer // retained across cycles; grows monotonically, never shrinks
	cols  columnLayout
	probe ThreadStateProber
	tgid  func(tid int) (int, bool)

	// stateful is latched true the first time a per-CPU aggregate counter
	// line (.nr_running / .rt_nr_running) is observed inside the block of
	// any requested CPU, and determines how task rows are interpreted thereafter.
	stateful bool
}

// NewTextual constructs a TextualSource. probe may be nil to use the
// default /proc/<tid>/stat prober.
func NewTextual(probe ThreadStateProber) *TextualSource {
	if probe == nil {
		probe = ProcStatState
	}
	return &TextualSource{probe: probe, tgid: ProcTgid}
}

func (s *TextualSource) Init() error {
	for _, p := range TextualPaths {
		if f, err := os.Open(p); err == nil {
			f.Close()
			s.path = p
			return nil
		}
	}
	return fmt.Errorf("textual: no readable dump among %v: %w", TextualPaths, ErrUnavailable)
}

func (s *TextualSource) Close() error { return nil }

// HasStarvingCandidate reports whether the retained waiting list for cs is
// non-empty. The textual source has no cheaper signal than the snapshot
// itself, so this simply inspects the already-parsed state.
func (s *TextualSource) HasStarvingCandidate(cs model.CpuState) bool {
	return len(cs.Waiting) > 0
}

// Snapshot reads the dump once and returns the parsed state for each
// requested CPU present in it.
func (s *TextualSource) Snapshot(cpus []int) map[int]model.CpuState {
	want := make(map[int]bool, len(cpus))
	for _, c := range cpus {
		want[c] = true
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil
	}
	defer f.Close()

	s.buf.Reset()
	if _, err := s.buf.ReadFrom(f); err != nil {
		return nil
	}

	return s.parse(s.buf.Bytes(), want)
}

func (s *TextualSource) parse(dump []byte, want map[int]bool) map[int]model.CpuState {
	out := make(map[int]model.CpuState)

	sc := bufio.NewScanner(bytes.NewReader(dump))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		cur       *model.CpuState
		inTable   bool
		skipLines int
	)

	for sc.Scan() {
		line := sc.Text()

		if strings.HasPrefix(strings.TrimSpace(line), "cpu#") {
			id, ok := parseCPUHeader(line)
			if !ok {
				cur = nil
				inTable = false
				continue
			}
			if want[id] {
				cs := model.CpuState{CPUID: id}
				out[id] = cs
				st := out[id]
				cur = &st
			} else {
				cur = nil
			}
			inTable = false
			continue
		}

		if cur == nil {
			continue
		}

		if nr, rt, ok := parseAggregateCounters(line); ok {
			s.stateful = true
			if nr >= 0 {
				cur.NrRunning = nr
			}
			if rt >= 0 {
				cur.NrRTRunning = rt
			}
			out[cur.CPUID] = *cur
			continue
		}

		if !inTable {
			if strings.Contains(line, "runnable tasks:") {
				inTable = true
				skipLines = 2 // header row + dashed separator
				continue
			}
			continue
		}

		if skipLines > 0 {
			if !s.cols.ready && skipLines == 2 {
				s.cols = detectColumns(line)
			}
			skipLines--
			continue
		}

		if strings.TrimSpace(line) == "" {
			inTable = false
			continue
		}

		if entry, ok := s.parseTaskRow(line); ok {
			cur.Waiting = append(cur.Waiting, entry)
			out[cur.CPUID] = *cur
		}
	}

	return out
}

func parseCPUHeader(line string) (int, bool) {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "cpu#")
	line = strings.TrimSuffix(line, ",")
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseAggregateCounters recognizes lines of the form
// ".nr_running                    : 2" inside a stateful-format CPU block.
// Each line carries exactly one of the two counters; the other return value
// is -1 and must not be assigned by the caller.
func parseAggregateCounters(line string) (nr, rt int, ok bool) {
	trimmed := strings.TrimSpace(line)
	name, val, found := strings.Cut(trimmed, ":")
	if !found {
		return 0, 0, false
	}
	name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "."))
	v, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, 0, false
	}
	switch name {
	case "nr_running":
		return v, -1, true
	case "rt_nr_running":
		return -1, v, true
	}
	return 0, 0, false
}

// detectColumns locates the words "task", "PID", "switches", "prio" in the
// header row and records their zero-based positions.
func detectColumns(header string) columnLayout {
	fields := strings.Fields(header)
	cols := columnLayout{task: -1, pid: -1, switches: -1, prio: -1}
	for i, f := range fields {
		switch f {
		case "task":
			cols.task = i
		case "PID":
			cols.pid = i
		case "switches":
			cols.switches = i
		case "prio":
			cols.prio = i
		}
	}
	cols.ready = cols.task >= 0 && cols.pid >= 0 && cols.switches >= 0 && cols.prio >= 0
	return cols
}

var stateChars = "RSDZTtXxKWP"

func isStateChar(s string) bool {
	return len(s) == 1 && strings.ContainsAny(s, stateChars)
}

func (s *TextualSource) parseTaskRow(line string) (model.TaskSnapshot, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return model.TaskSnapshot{}, false
	}

	if !s.stateful {
		if fields[0] == "R" {
			// The currently-running task: cannot be starving by
			// definition.
			return model.TaskSnapshot{}, false
		}
		return s.buildSnapshot(fields, true)
	}

	if !isStateChar(fields[0]) {
		return model.TaskSnapshot{}, false
	}
	if fields[0] != "R" {
		return model.TaskSnapshot{}, false
	}
	return s.buildSnapshot(fields, false)
}

func (s *TextualSource) buildSnapshot(fields []string, mustProbe bool) (model.TaskSnapshot, bool) {
	if !s.cols.ready {
		return model.TaskSnapshot{}, false
	}
	get := func(i int) (string, bool) {
		if i < 0 || i >= len(fields) {
			return "", false
		}
		return fields[i], true
	}

	comm, ok := get(s.cols.task)
	if !ok {
		return model.TaskSnapshot{}, false
	}
	pidStr, ok := get(s.cols.pid)
	if !ok {
		return model.TaskSnapshot{}, false
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return model.TaskSnapshot{}, false
	}
	switchesStr, ok := get(s.cols.switches)
	if !ok {
		return model.TaskSnapshot{}, false
	}
	ctxsw, err := strconv.ParseFloat(switchesStr, 64)
	if err != nil {
		return model.TaskSnapshot{}, false
	}
	prioStr, ok := get(s.cols.prio)
	prio := 0
	if ok {
		prio, _ = strconv.Atoi(prioStr)
	}

	if mustProbe {
		running, err := s.probe(pid)
		if err != nil || !running {
			return model.TaskSnapshot{}, false
		}
	}

	snap := model.TaskSnapshot{
		TID:   pid,
		Comm:  comm,
		Prio:  prio,
		Ctxsw: uint64(ctxsw),
	}
	if s.tgid != nil {
		if tgid, ok := s.tgid(pid); ok {
			snap.TGID = tgid
		}
	}
	return snap, true
}
