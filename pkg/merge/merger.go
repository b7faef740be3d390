// Package merge reconciles a fresh per-CPU snapshot against the previously
// retained one, preserving each thread's starvation-start timestamp as long
// as its identity (tid) and progress (ctxsw counter) both carry over.
package merge

import (
	"time"

	"github.com/clrkwllms/stalld/pkg/model"
)

// Now is overridable in tests; production code leaves it as time.Now.
var Now = time.Now

// Merge reconciles prior against fresh for one CPU.
//
// For each entry f in fresh, it looks up an entry p in prior with the same
// TID. If found and p.Ctxsw == f.Ctxsw, the merged entry is f with
// Since := p.Since (identity-and-progress preservation). Otherwise the
// merged entry is f with Since := now() (new observation, or observed
// progress resets the clock). Entries in prior without a match in fresh are
// discarded: a task seen once then absent produces no ghost detection.
//
// Merge does not mutate prior or fresh.
func Merge(prior, fresh []model.TaskSnapshot) []model.TaskSnapshot {
	now := Now()

	byTID := make(map[int]model.TaskSnapshot, len(prior))
	for _, p := range prior {
		byTID[p.TID] = p
	}

	out := make([]model.TaskSnapshot, 0, len(fresh))
	for _, f := range fresh {
		merged := f
		if p, ok := byTID[f.TID]; ok && p.Ctxsw == f.Ctxsw {
			merged.Since = p.Since
		} else {
			merged.Since = now
		}
		out = append(out, merged)
	}
	return out
}
