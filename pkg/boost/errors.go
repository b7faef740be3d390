package boost

import "fmt"

// EnvironmentError is fatal at startup: the process lacks CAP_SYS_NICE,
// RT throttling is engaged and cannot be made unbounded, or (under
// automatic source selection) both Runqueue Source backends failed to
// initialize.
type EnvironmentError struct {
	Reason string
}

func (e *EnvironmentError) Error() string { return "boost: environment: " + e.Reason }

// TargetVanished is returned when a boost apply or restore targets a tid
// that has already exited. Logged at info, never fatal.
type TargetVanished struct {
	TID int
}

func (e *TargetVanished) Error() string {
	return fmt.Sprintf("boost: target %d vanished", e.TID)
}

// PolicyError is an unexpected failure to set scheduling attributes on a
// live target. Logged at warn; the session is closed; the daemon continues.
type PolicyError struct {
	TID    int
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("boost: policy error for tid %d: %s", e.TID, e.Reason)
}

// PermissionError means a scheduling syscall failed with EPERM: the process
// lacks the capability to set scheduling attributes. It is not fatal: the
// orchestrator logs it at warn and goes on with later targets. A missing
// CAP_SYS_NICE is reported as an EnvironmentError only by the startup
// CheckCapability preflight.
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string { return "boost: permission denied: " + e.Reason }

// errAlreadyBoosted is returned by Engine.Boost when active_boosters[tid]
// was already set; the caller skips this target for the current cycle.
var errAlreadyBoosted = fmt.Errorf("boost: already boosted")

// IsAlreadyBoosted reports whether err is the already-boosted sentinel.
func IsAlreadyBoosted(err error) bool { return err == errAlreadyBoosted }
