// Package source implements the Runqueue Source abstraction: the interface
// the rest of the detection-and-boost pipeline uses to obtain a per-CPU
// snapshot of runnable, not-currently-running threads, plus the Idle Gate
// pre-filter that the Scheduler consults before paying for a snapshot.
//
// Two concrete backends are provided behind the single Source interface,
// chosen once at startup and never swapped mid-run:
//
//   - Textual: parses the plain-text dump at /sys/kernel/debug/sched/debug
//     or /proc/sched_debug. Whole-system: one read serves every monitored
//     CPU in a cycle. Supports both the "stateless" kernel generation
//     (a single R-marked running task per block, all other rows require an
//     external /proc/<tid>/stat probe) and the "stateful" generation
//     (a state character in the first column of every row, plus
//     .nr_running/.rt_nr_running aggregate lines used as allocation hints).
//
//   - Tracepoint: reads per-CPU eBPF maps populated by kernel-side programs
//     attached to sched_wakeup, sched_switch, sched_migrate_task and
//     sched_process_exit. Per-CPU: each monitored CPU is read
//     independently. May under-report relative to the textual source
//     (it can miss threads whose kernel-exported state is not
//     TASK_RUNNING at sample time); the core treats the two sources as
//     equivalent only in their common contract (identity + Ctxsw), never
//     assumes parity.
//
// Both backends implement HasStarvingCandidate, a cheap pre-filter the
// Scheduler uses to skip expensive detection work on a CPU with an
// obviously-empty waiting list.
//
// The buffer the textual backend reads the debugfs/procfs dump into is a
// stdlib bytes.Buffer, retained across cycles on the backend value: Buffer
// already grows monotonically on ReadFrom and never shrinks on Reset,
// which keeps the "grow, never shrink" contract for the scan buffer, so
// no bespoke growable-buffer type is introduced.
package source
