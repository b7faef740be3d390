//go:build linux

package source

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ProcStatState is the default ThreadStateProber: it reads
// /proc/<tid>/stat and reports whether the third whitespace-delimited
// field is "R" (runnable). Comm (the second field) is parenthesized and
// may itself contain spaces, so everything up to the last ") " is
// skipped rather than naively splitting on whitespace.
func ProcStatState(tid int) (bool, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/stat", tid))
	if err != nil {
		return false, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return false, fmt.Errorf("source: empty /proc/%d/stat", tid)
	}
	line := sc.Text()

	i := strings.LastIndex(line, ") ")
	if i < 0 {
		return false, fmt.Errorf("source: malformed /proc/%d/stat", tid)
	}
	fields := strings.Fields(line[i+2:])
	if len(fields) == 0 {
		return false, fmt.Errorf("source: short /proc/%d/stat", tid)
	}
	return fields[0] == "R", nil
}

// ProcTgid reads /proc/<tid>/status and returns the Tgid: value. Used to
// fill TaskSnapshot.TGID for the textual source, whose sched_debug dump
// carries no tgid column of its own.
func ProcTgid(tid int) (int, bool) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/status", tid))
	if err != nil {
		return 0, false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "Tgid:") {
			v := strings.TrimSpace(strings.TrimPrefix(line, "Tgid:"))
			tgid, err := strconv.Atoi(v)
			if err != nil {
				return 0, false
			}
			return tgid, true
		}
	}
	return 0, false
}
