// Package boost implements the Boost Engine, Method Probe, and RT-Throttle
// Gate: the mechanism that elevates a starving thread's scheduling
// attributes for a bounded duration and restores them afterward.
package boost

import (
	"time"

	"github.com/clrkwllms/stalld/pkg/config"
	"github.com/clrkwllms/stalld/pkg/model"
)

type saveFunc func(tid int) (model.SchedAttr, error)
type restoreFunc func(tid int, saved model.SchedAttr) error
type applyDeadlineFunc func(tid int, runtime, period uint64) error
type applyFixedFunc func(tid, prio int) error

// Engine applies and restores scheduling attributes for boost sessions. It
// is the only component that touches active_boosters, the one process-wide
// mutable structure in the core.
type Engine struct {
	cfg    *config.Config
	method model.Method

	active *activeSet
	sleep  func(time.Duration)
	now    func() time.Time

	save          saveFunc
	restore       restoreFunc
	applyDeadline applyDeadlineFunc
	applyFixed    applyFixedFunc
}

func newEngine(cfg *config.Config, method model.Method, save saveFunc, restore restoreFunc, ad applyDeadlineFunc, af applyFixedFunc) *Engine {
	return &Engine{
		cfg:           cfg,
		method:        method,
		active:        newActiveSet(),
		sleep:         time.Sleep,
		now:           time.Now,
		save:          save,
		restore:       restore,
		applyDeadline: ad,
		applyFixed:    af,
	}
}

// Method reports the elevation mechanism this Engine was built with.
func (e *Engine) Method() model.Method { return e.method }

// ActiveBoosters reports the current size of the active_boosters set, for
// metrics reporting only.
func (e *Engine) ActiveBoosters() int { return e.active.count() }

// RequireVectorCompatible enforces that vectorized boosting is only
// selected alongside the deadline method: the power strategy calls this
// once at startup, after the Method Probe has run.
func RequireVectorCompatible(strategy model.Strategy, method model.Method) error {
	if strategy == model.Power && method == model.MethodFixedPriority {
		return &config.ConfigError{Reason: "power strategy selected but only the fixed-priority method is available; vectorized boost requires the deadline method"}
	}
	return nil
}

// Boost opens and closes one boost session for target, using whichever
// method this Engine was configured with. It returns errAlreadyBoosted
// (see IsAlreadyBoosted) if active_boosters[target.TID] was already set.
func (e *Engine) Boost(target model.TaskSnapshot) error {
	tid := target.TID

	if e.cfg.LogOnly {
		return nil
	}

	if !e.active.tryAcquire(tid) {
		return errAlreadyBoosted
	}
	defer e.active.release(tid)

	if e.method == model.MethodDeadline {
		return e.boostDeadline(tid)
	}
	return e.boostFixedPriority(tid)
}

func (e *Engine) boostDeadline(tid int) error {
	saved, err := e.save(tid)
	if err != nil {
		return err
	}

	runtime := uint64(e.cfg.BoostRuntime.Nanoseconds())
	period := uint64(e.cfg.BoostPeriod.Nanoseconds())
	if err := e.applyDeadline(tid, runtime, period); err != nil {
		return err
	}

	e.sleep(e.cfg.BoostDuration)

	return e.restore(tid, saved)
}

func (e *Engine) boostFixedPriority(tid int) error {
	saved, err := e.save(tid)
	if err != nil {
		return err
	}

	runtime := e.cfg.BoostRuntime
	period := e.cfg.BoostPeriod
	idle := period - runtime
	deadline := e.now().Add(e.cfg.BoostDuration)

	for e.now().Before(deadline) {
		if err := e.applyFixed(tid, e.cfg.FixedPriority); err != nil {
			_ = e.restore(tid, saved)
			return err
		}

		e.sleep(runtime)

		if err := e.restore(tid, saved); err != nil {
			return err
		}

		if idle > 0 {
			e.sleep(idle)
		}
	}
	return nil
}

// sessionHandle tracks one leg of a vectorized boost, from acquisition
// through its saved attributes, so BoostVector can restore everything it
// opened regardless of how many targets succeeded.
type sessionHandle struct {
	tid   int
	saved model.SchedAttr
}

// VectorResult reports what happened to one target of a BoostVector call,
// for the caller's logging; Err is nil for a target that was successfully
// boosted and restored.
type VectorResult struct {
	TID int
	Err error
}

// BoostVector opens deadline sessions for every target before sleeping
// once, then restores all of them. Only valid with the deadline method;
// callers must check RequireVectorCompatible at startup.
func (e *Engine) BoostVector(targets []model.TaskSnapshot) []VectorResult {
	results := make([]VectorResult, 0, len(targets))
	if e.cfg.LogOnly || len(targets) == 0 {
		return results
	}

	var opened []sessionHandle
	for _, t := range targets {
		if !e.active.tryAcquire(t.TID) {
			results = append(results, VectorResult{TID: t.TID, Err: errAlreadyBoosted})
			continue
		}

		saved, err := e.save(t.TID)
		if err != nil {
			e.active.release(t.TID)
			results = append(results, VectorResult{TID: t.TID, Err: err})
			continue
		}

		runtime := uint64(e.cfg.BoostRuntime.Nanoseconds())
		period := uint64(e.cfg.BoostPeriod.Nanoseconds())
		if err := e.applyDeadline(t.TID, runtime, period); err != nil {
			e.active.release(t.TID)
			results = append(results, VectorResult{TID: t.TID, Err: err})
			continue
		}

		opened = append(opened, sessionHandle{tid: t.TID, saved: saved})
	}

	e.sleep(e.cfg.BoostDuration)

	for _, s := range opened {
		// Restoration errors never propagate; every opened session must
		// still release active_boosters.
		err := e.restore(s.tid, s.saved)
		e.active.release(s.tid)
		results = append(results, VectorResult{TID: s.tid, Err: err})
	}

	return results
}
