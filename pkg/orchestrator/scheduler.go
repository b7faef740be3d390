// Package orchestrator implements the three orchestration strategies that
// drive the detection-and-boost cycle across monitored CPUs: power
// (single-threaded), adaptive (per-CPU workers spawned on demand), and
// aggressive (one worker per CPU from startup).
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/clrkwllms/stalld/pkg/boost"
	"github.com/clrkwllms/stalld/pkg/config"
	"github.com/clrkwllms/stalld/pkg/detect"
	"github.com/clrkwllms/stalld/pkg/merge"
	"github.com/clrkwllms/stalld/pkg/metrics"
	"github.com/clrkwllms/stalld/pkg/model"
	"github.com/clrkwllms/stalld/pkg/source"
)

// Strategy is one of the three orchestration strategies; exactly one is
// selected at startup and run for the life of the process.
type Strategy interface {
	Run(ctx context.Context) error
}

// Deps bundles what every strategy needs. It is built once in cmd/stalld
// and shared (read-only, beyond each component's own internal state) by
// whichever Strategy is selected.
type Deps struct {
	Cfg      *config.Config
	Source   source.Source
	Idle     *source.IdleGate
	Detector *detect.Detector
	Engine   *boost.Engine
	Log      *slog.Logger
	CPUs     []int

	// Metrics is nil unless a metrics address was configured; every call
	// site below must tolerate a nil Recorder.
	Metrics *metrics.Recorder
}

func (d Deps) recordDetection(cpu int, n int) {
	if d.Metrics == nil || n == 0 {
		return
	}
	d.Metrics.Detections.WithLabelValues(strconv.Itoa(cpu)).Add(float64(n))
}

// sampleMergeDetect runs one snapshot+merge+detect pass for a single CPU
// against its retained prior waiting list. ok is false when the CPU was
// dropped from this cycle (SourceError); cs is the zero value in that case.
// When the HasStarvingCandidate pre-filter skips a full pass, cs is still the freshly
// sampled state (so callers can still read its NrRunning/NrRTRunning hint).
func sampleMergeDetect(d Deps, cpu int, prior []model.TaskSnapshot) (merged, targets []model.TaskSnapshot, cs model.CpuState, ok bool) {
	snap := d.Source.Snapshot([]int{cpu})
	cs, present := snap[cpu]
	if !present {
		d.Log.Warn("source error, dropping cpu for this cycle", "cpu", cpu)
		return nil, nil, model.CpuState{}, false
	}
	if !d.Source.HasStarvingCandidate(cs) {
		return prior, nil, cs, true
	}

	merged = merge.Merge(prior, cs.Waiting)
	targets = d.Detector.Detect(merged)
	d.recordDetection(cpu, len(targets))
	return merged, targets, cs, true
}

// mergeAndRetain merges cpu's fresh waiting list against the caller's
// retained prior map and stores the result back, returning the merged list.
func mergeAndRetain(prior map[int][]model.TaskSnapshot, cpu int, fresh []model.TaskSnapshot) []model.TaskSnapshot {
	merged := merge.Merge(prior[cpu], fresh)
	prior[cpu] = merged
	return merged
}

// boostTarget applies (or, in log-only mode, just logs) one detection
// target. Already-boosted is not an error worth logging; a vanished target
// is routine and logged at info; every other failure is logged at warn.
// The daemon continues regardless.
func boostTarget(d Deps, cpu int, t model.TaskSnapshot) {
	if d.Cfg.LogOnly {
		d.Log.Info("starvation detected (log-only)", "cpu", cpu, "tid", t.TID, "comm", t.Comm, "tgid", t.TGID)
		return
	}

	d.Log.Info("starvation detected", "cpu", cpu, "tid", t.TID, "comm", t.Comm, "tgid", t.TGID)
	if err := d.Engine.Boost(t); err != nil {
		if boost.IsAlreadyBoosted(err) {
			return
		}
		var vanished *boost.TargetVanished
		if errors.As(err, &vanished) {
			d.Log.Info("boost target vanished", "cpu", cpu, "tid", t.TID)
		} else {
			d.Log.Warn("boost failed", "cpu", cpu, "tid", t.TID, "err", err)
		}
		if d.Metrics != nil {
			d.Metrics.BoostFailures.WithLabelValues(failureReason(err)).Inc()
		}
		return
	}
	d.Log.Info("boost restored", "cpu", cpu, "tid", t.TID)
	if d.Metrics != nil {
		d.Metrics.Boosts.WithLabelValues(strconv.Itoa(cpu), d.Engine.Method().String()).Inc()
		d.Metrics.Restores.Inc()
		d.Metrics.ActiveBoosters.Set(float64(d.Engine.ActiveBoosters()))
	}
}

func failureReason(err error) string {
	switch err.(type) {
	case *boost.TargetVanished:
		return "vanished"
	case *boost.PermissionError:
		return "permission"
	case *boost.PolicyError:
		return "policy"
	default:
		return "other"
	}
}
