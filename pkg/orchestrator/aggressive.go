package orchestrator

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clrkwllms/stalld/pkg/merge"
	"github.com/clrkwllms/stalld/pkg/model"
)

// AggressiveScheduler spawns one worker per monitored CPU at startup and
// never tears any down: highest precision, highest steady-state overhead,
// no coordinator.
type AggressiveScheduler struct {
	d Deps
}

// NewAggressive builds an AggressiveScheduler.
func NewAggressive(d Deps) *AggressiveScheduler {
	return &AggressiveScheduler{d: d}
}

func (s *AggressiveScheduler) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, cpu := range s.d.CPUs {
		cpu := cpu
		g.Go(func() error {
			s.runWorker(gctx, cpu)
			return nil
		})
	}
	return g.Wait()
}

func (s *AggressiveScheduler) runWorker(ctx context.Context, cpu int) {
	ticker := time.NewTicker(s.d.Cfg.Granularity)
	defer ticker.Stop()

	var prior []model.TaskSnapshot

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := s.d.Source.Snapshot([]int{cpu})
			cs, ok := snap[cpu]
			if !ok {
				s.d.Log.Warn("source error, dropping cpu for this cycle", "cpu", cpu)
				continue
			}
			if !s.d.Source.HasStarvingCandidate(cs) {
				continue
			}

			merged := merge.Merge(prior, cs.Waiting)
			prior = merged

			targets := s.d.Detector.Detect(merged)
			s.d.recordDetection(cpu, len(targets))
			for _, t := range targets {
				boostTarget(s.d, cpu, t)
			}
		}
	}
}
