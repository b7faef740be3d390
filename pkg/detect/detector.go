// Package detect applies the starvation threshold, denylists and progress
// predicate to a merged per-CPU waiting list and emits detection targets.
package detect

import (
	"sync"
	"time"

	"github.com/clrkwllms/stalld/pkg/config"
	"github.com/clrkwllms/stalld/pkg/model"
)

// Now is overridable in tests.
var Now = time.Now

// TgidNameResolver maps a tgid to its process-group name. The default,
// ProcStatusName, reads /proc/<tgid>/status. Tests substitute a fake.
type TgidNameResolver func(tgid int) (string, bool)

// Detector applies the starvation predicate for one run.
type Detector struct {
	cfg      *config.Config
	resolve  TgidNameResolver
	warnOnce sync.Once
	warnFn   func()
}

// New builds a Detector bound to cfg. warnFn, if non-nil, is invoked at
// most once the first time the fair-server presence is observed; callers
// typically pass a slog.Warn closure.
func New(cfg *config.Config, warnFn func()) *Detector {
	return &Detector{cfg: cfg, resolve: ProcStatusName, warnFn: warnFn}
}

// Detect returns the subset of waiting that are starving: runnable for at
// least cfg.Threshold, not matching either denylist.
func (d *Detector) Detect(waiting []model.TaskSnapshot) []model.TaskSnapshot {
	if d.FairServerPresent() && d.warnFn != nil {
		d.warnOnce.Do(d.warnFn)
	}

	now := Now()
	var targets []model.TaskSnapshot
	for _, e := range waiting {
		if now.Sub(e.Since) < d.cfg.Threshold {
			continue
		}
		if config.MatchesAny(d.cfg.IgnoreComm, e.Comm) {
			continue
		}
		if name, ok := d.resolve(e.TGID); ok && config.MatchesAny(d.cfg.IgnoreTgidName, name) {
			continue
		}
		targets = append(targets, e)
	}
	return targets
}

// MaxWait returns the largest now-since across waiting, used by the
// adaptive strategy to decide when to spawn a dedicated worker. It returns
// zero for an empty list.
func MaxWait(waiting []model.TaskSnapshot, now time.Time) time.Duration {
	var max time.Duration
	for _, e := range waiting {
		if w := now.Sub(e.Since); w > max {
			max = w
		}
	}
	return max
}
