package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clrkwllms/stalld/pkg/detect"
	"github.com/clrkwllms/stalld/pkg/merge"
	"github.com/clrkwllms/stalld/pkg/model"
)

// drainAfterEmptyCycles is how many contiguous cycles with no waiting tasks
// a per-CPU worker tolerates before draining back to the coordinator.
const drainAfterEmptyCycles = 10

// overloadSpawnThreshold is how many contiguous cycles of RT runqueue
// pressure (NrRTRunning > 0) the coordinator tolerates on a CPU before
// spawning a dedicated worker, even if no single SCHED_OTHER thread has
// yet waited past half the starvation threshold: sustained RT pressure is
// a strong leading indicator that one is about to.
const overloadSpawnThreshold = 3

// AdaptiveScheduler runs one coordinator that samples every CPU and spawns
// a dedicated per-CPU worker only once that CPU shows a meaningfully long
// wait; workers own their CPU until it goes quiet, then drain. It is the
// only strategy compatible with the fixed-priority method, since workers
// boost individually rather than vectorized.
type AdaptiveScheduler struct {
	d     Deps
	prior map[int][]model.TaskSnapshot

	// cpuState retains OverloadedCycles per CPU across coordinator passes;
	// only the coordinator goroutine touches it, so it needs no lock.
	cpuState map[int]model.CpuState

	mu    sync.Mutex
	state map[int]model.ThreadState
}

// NewAdaptive builds an AdaptiveScheduler.
func NewAdaptive(d Deps) *AdaptiveScheduler {
	return &AdaptiveScheduler{
		d:        d,
		prior:    make(map[int][]model.TaskSnapshot),
		cpuState: make(map[int]model.CpuState),
		state:    make(map[int]model.ThreadState),
	}
}

func (a *AdaptiveScheduler) threadState(cpu int) model.ThreadState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state[cpu]
}

func (a *AdaptiveScheduler) setThreadState(cpu int, s model.ThreadState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state[cpu] = s
}

func (a *AdaptiveScheduler) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	ticker := time.NewTicker(a.d.Cfg.Granularity)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case <-ticker.C:
			a.coordinate(gctx, g)
		}
	}
}

// coordinate runs the coordinator's own pass over every CPU not currently
// owned by a dedicated worker, and spawns new workers for CPUs whose
// longest wait crosses half the starvation threshold, or whose runqueue
// shows sustained RT pressure (see overloadSpawnThreshold).
func (a *AdaptiveScheduler) coordinate(ctx context.Context, g *errgroup.Group) {
	for _, cpu := range a.d.CPUs {
		if a.threadState(cpu) == model.Running {
			continue
		}
		if !a.d.Idle.Busy(cpu) {
			continue
		}

		merged, targets, cs, ok := sampleMergeDetect(a.d, cpu, a.prior[cpu])
		if !ok {
			continue
		}
		a.prior[cpu] = merged

		for _, t := range targets {
			boostTarget(a.d, cpu, t)
		}

		if cs.NrRTRunning > 0 {
			cs.OverloadedCycles = a.cpuState[cpu].OverloadedCycles + 1
		} else {
			cs.OverloadedCycles = 0
		}
		a.cpuState[cpu] = cs
		overloaded := cs.OverloadedCycles >= overloadSpawnThreshold

		if detect.MaxWait(merged, time.Now()) < a.d.Cfg.Threshold/2 && !overloaded {
			continue
		}
		if overloaded {
			a.d.Log.Info("spawning worker on sustained rt runqueue pressure", "cpu", cpu, "cycles", cs.OverloadedCycles)
		}
		delete(a.cpuState, cpu)

		a.setThreadState(cpu, model.Running)
		prior := a.prior[cpu]
		delete(a.prior, cpu) // the worker now owns this CPU's retained state
		g.Go(func() error {
			a.runWorker(ctx, cpu, prior)
			return nil
		})
	}
}

// runWorker owns cpu exclusively until it drains: it samples, merges,
// detects, and boosts at granularity, and counts contiguous cycles with no
// waiting tasks at all. prior is the coordinator's retained waiting list for
// cpu, handed over at spawn time.
func (a *AdaptiveScheduler) runWorker(ctx context.Context, cpu int, prior []model.TaskSnapshot) {
	ticker := time.NewTicker(a.d.Cfg.Granularity)
	defer ticker.Stop()

	emptyStreak := 0

	for {
		select {
		case <-ctx.Done():
			a.setThreadState(cpu, model.Detached)
			return
		case <-ticker.C:
			snap := a.d.Source.Snapshot([]int{cpu})
			cs, ok := snap[cpu]
			if !ok {
				continue
			}

			merged := merge.Merge(prior, cs.Waiting)
			prior = merged

			targets := a.d.Detector.Detect(merged)
			a.d.recordDetection(cpu, len(targets))
			for _, t := range targets {
				boostTarget(a.d, cpu, t)
			}

			if len(cs.Waiting) == 0 {
				emptyStreak++
			} else {
				emptyStreak = 0
			}

			if emptyStreak >= drainAfterEmptyCycles {
				a.setThreadState(cpu, model.Draining)
				a.d.Log.Info("worker draining, no waiting tasks for consecutive cycles", "cpu", cpu, "cycles", emptyStreak)
				a.setThreadState(cpu, model.Detached)
				return
			}
		}
	}
}
