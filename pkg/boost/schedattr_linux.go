//go:build linux

package boost

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/clrkwllms/stalld/pkg/model"
)

// SCHED_* policy numbers as exposed by the kernel; x/sys/unix does not
// define SCHED_DEADLINE so all four are kept together here for clarity.
const (
	schedOther    = 0
	schedFIFO     = 1
	schedRR       = 2
	schedDeadline = 6

	schedFlagResetOnFork = 0x01
)

// schedAttr mirrors struct sched_attr from the kernel's sched.h uAPI. Field
// order and widths must match exactly; sched_setattr/sched_getattr reject
// a size field that doesn't match what the running kernel expects, so Size
// is always set from the struct's own width.
type schedAttr struct {
	Size            uint32
	Policy          uint32
	Flags           uint64
	Nice            int32
	Priority        uint32
	Runtime         uint64
	Deadline        uint64
	Period          uint64
	UtilMin         uint32
	UtilMax         uint32
}

// schedSetattr and schedGetattr wrap the two syscalls x/sys/unix does not
// expose directly. golang.org/x/sys/unix has no Go-level wrapper for
// SCHED_DEADLINE's sched_setattr/sched_getattr pair, so these go straight
// through unix.Syscall6 the same way unix itself wraps raw syscall numbers.
func schedSetattr(tid int, attr *schedAttr, flags uintptr) error {
	attr.Size = uint32(unsafe.Sizeof(*attr))
	_, _, errno := unix.Syscall6(uintptr(unix.SYS_SCHED_SETATTR), uintptr(tid), uintptr(unsafe.Pointer(attr)), flags, 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func schedGetattr(tid int, attr *schedAttr) error {
	attr.Size = uint32(unsafe.Sizeof(*attr))
	size := uintptr(unsafe.Sizeof(*attr))
	_, _, errno := unix.Syscall6(uintptr(unix.SYS_SCHED_GETATTR), uintptr(tid), uintptr(unsafe.Pointer(attr)), size, 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// setFixedPriority applies SCHED_FIFO at prio to tid via the raw
// sched_setscheduler syscall, bypassing glibc's restriction that
// pthread-facing scheduling calls only target the caller's own thread.
func setFixedPriority(tid, prio int) error {
	param := unix.SchedParam{Priority: int32(prio)}
	_, _, errno := unix.Syscall(uintptr(unix.SYS_SCHED_SETSCHEDULER), uintptr(tid), uintptr(schedFIFO), uintptr(unsafe.Pointer(&param)))
	if errno != 0 {
		return errno
	}
	return nil
}

// getSchedParam reads the current policy and priority for tid.
func getSchedParam(tid int) (policy int, prio int, err error) {
	var param unix.SchedParam
	p, _, errno := unix.Syscall(uintptr(unix.SYS_SCHED_GETSCHEDULER), uintptr(tid), 0, 0)
	if errno != 0 {
		return 0, 0, errno
	}
	_, _, errno = unix.Syscall(uintptr(unix.SYS_SCHED_GETPARAM), uintptr(tid), uintptr(unsafe.Pointer(&param)), 0)
	if errno != 0 {
		return 0, 0, errno
	}
	return int(p), int(param.Priority), nil
}

// saveAttrs reads tid's current scheduling attributes, preferring
// sched_getattr (which reports deadline parameters when present) and
// falling back to sched_getparam for kernels where getattr is unsupported.
func saveAttrs(tid int) (model.SchedAttr, error) {
	var attr schedAttr
	if err := schedGetattr(tid, &attr); err == nil {
		return model.SchedAttr{
			Policy:   int(attr.Policy),
			Priority: int(attr.Priority),
			Runtime:  attr.Runtime,
			Period:   attr.Period,
			Deadline: attr.Deadline,
		}, nil
	}

	policy, prio, err := getSchedParam(tid)
	if err != nil {
		return model.SchedAttr{}, classifySchedErr(tid, err)
	}
	return model.SchedAttr{Policy: policy, Priority: prio}, nil
}

// restoreAttrs reapplies a previously saved attribute set.
func restoreAttrs(tid int, saved model.SchedAttr) error {
	if saved.Policy == schedDeadline {
		attr := schedAttr{
			Policy:   uint32(saved.Policy),
			Runtime:  saved.Runtime,
			Deadline: saved.Deadline,
			Period:   saved.Period,
		}
		if err := schedSetattr(tid, &attr, 0); err != nil {
			return classifySchedErr(tid, err)
		}
		return nil
	}

	param := unix.SchedParam{Priority: int32(saved.Priority)}
	_, _, errno := unix.Syscall(uintptr(unix.SYS_SCHED_SETSCHEDULER), uintptr(tid), uintptr(saved.Policy), uintptr(unsafe.Pointer(&param)))
	if errno != 0 {
		return classifySchedErr(tid, errno)
	}
	return nil
}

// applyDeadline elevates tid to SCHED_DEADLINE with the given runtime and
// period (deadline == period).
func applyDeadline(tid int, runtime, period uint64) error {
	attr := schedAttr{
		Policy:   schedDeadline,
		Runtime:  runtime,
		Deadline: period,
		Period:   period,
	}
	if err := schedSetattr(tid, &attr, 0); err != nil {
		return classifySchedErr(tid, err)
	}
	return nil
}

// classifySchedErr maps a raw errno into the error-kinds the Engine
// distinguishes: a vanished target, a permission failure, or an
// unexpected policy failure.
func classifySchedErr(tid int, err error) error {
	errno, ok := err.(unix.Errno)
	if !ok {
		return &PolicyError{TID: tid, Reason: err.Error()}
	}
	switch errno {
	case unix.ESRCH:
		return &TargetVanished{TID: tid}
	case unix.EPERM:
		return &PermissionError{Reason: fmt.Sprintf("tid %d: %v", tid, errno)}
	default:
		return &PolicyError{TID: tid, Reason: errno.Error()}
	}
}
