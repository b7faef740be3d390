//go:build linux

package detect

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// FairServerPath is the debugfs marker for the kernel's automatic
// fair-server mechanism. Its presence means the operator may observe zero
// detections even on an otherwise-correctly-configured host.
const FairServerPath = "/sys/kernel/debug/sched/fair_server"

// FairServerPresent reports whether the kernel exposes the automatic
// fair-server debugfs directory.
func (d *Detector) FairServerPresent() bool {
	_, err := os.Stat(FairServerPath)
	return err == nil
}

// ProcStatusName reads /proc/<tgid>/status and returns the value of the
// "Name:" line. A failed resolution (missing file, missing line) is
// reported as ok=false, which callers MUST treat as "no match" per spec.
func ProcStatusName(tgid int) (string, bool) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/status", tgid))
	if err != nil {
		return "", false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "Name:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "Name:")), true
		}
	}
	return "", false
}
