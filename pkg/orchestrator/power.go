package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/clrkwllms/stalld/pkg/boost"
	"github.com/clrkwllms/stalld/pkg/model"
)

// PowerScheduler is the single-threaded strategy: lowest steady-state
// overhead, requires the deadline method, boosts all of a cycle's targets
// in one vectorized session.
type PowerScheduler struct {
	d     Deps
	prior map[int][]model.TaskSnapshot
}

// NewPower builds a PowerScheduler. It fails if the engine's method cannot
// support vectorized boosting.
func NewPower(d Deps) (*PowerScheduler, error) {
	if err := boost.RequireVectorCompatible(model.Power, d.Engine.Method()); err != nil {
		return nil, err
	}
	return &PowerScheduler{d: d, prior: make(map[int][]model.TaskSnapshot)}, nil
}

func (p *PowerScheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.d.Cfg.Granularity)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.cycle()
		}
	}
}

func (p *PowerScheduler) cycle() {
	var busy []int
	for _, c := range p.d.CPUs {
		if p.d.Idle.Busy(c) {
			busy = append(busy, c)
		}
	}
	if len(busy) == 0 {
		return
	}

	snap := p.d.Source.Snapshot(busy)

	var vector []model.TaskSnapshot
	for _, c := range busy {
		cs, ok := snap[c]
		if !ok {
			p.d.Log.Warn("source error, dropping cpu for this cycle", "cpu", c)
			continue
		}
		if !p.d.Source.HasStarvingCandidate(cs) {
			continue
		}

		merged := mergeAndRetain(p.prior, c, cs.Waiting)
		targets := p.d.Detector.Detect(merged)
		p.d.recordDetection(c, len(targets))
		for _, t := range targets {
			p.d.Log.Info("starvation detected", "cpu", c, "tid", t.TID, "comm", t.Comm)
		}
		vector = append(vector, targets...)
	}

	if len(vector) == 0 {
		return
	}
	if p.d.Cfg.LogOnly {
		return
	}

	for _, r := range p.d.Engine.BoostVector(vector) {
		if r.Err != nil {
			if !boost.IsAlreadyBoosted(r.Err) {
				var vanished *boost.TargetVanished
				if errors.As(r.Err, &vanished) {
					p.d.Log.Info("vectorized boost entry target vanished", "tid", r.TID)
				} else {
					p.d.Log.Warn("vectorized boost entry failed", "tid", r.TID, "err", r.Err)
				}
				if p.d.Metrics != nil {
					p.d.Metrics.BoostFailures.WithLabelValues(failureReason(r.Err)).Inc()
				}
			}
			continue
		}
		if p.d.Metrics != nil {
			p.d.Metrics.Boosts.WithLabelValues("vector", p.d.Engine.Method().String()).Inc()
			p.d.Metrics.Restores.Inc()
		}
	}
	if p.d.Metrics != nil {
		p.d.Metrics.ActiveBoosters.Set(float64(p.d.Engine.ActiveBoosters()))
	}
}
