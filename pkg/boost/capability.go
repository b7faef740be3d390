//go:build linux

package boost

import (
	"fmt"

	"github.com/syndtr/gocapability/capability"
)

// CheckCapability is a startup preflight: sched_setattr and
// sched_setscheduler both require CAP_SYS_NICE (or an effective UID of 0,
// which implies it). A process missing it can still run the Method Probe
// and every boost attempt, but every one of them would fail with EPERM, so
// this is checked once, up front, and reported clearly instead of letting
// the first boost attempt surface an opaque permission error.
func CheckCapability() error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return &EnvironmentError{Reason: fmt.Sprintf("reading process capabilities: %v", err)}
	}
	if err := caps.Load(); err != nil {
		return &EnvironmentError{Reason: fmt.Sprintf("loading process capabilities: %v", err)}
	}
	if !caps.Get(capability.EFFECTIVE, capability.CAP_SYS_NICE) {
		return &EnvironmentError{Reason: "missing CAP_SYS_NICE: sched_setattr/sched_setscheduler require it (run as root or grant the capability)"}
	}
	return nil
}
