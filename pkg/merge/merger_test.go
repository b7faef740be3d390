package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clrkwllms/stalld/pkg/model"
)

func withNow(t *testing.T, ts time.Time) {
	t.Helper()
	old := Now
	Now = func() time.Time { return ts }
	t.Cleanup(func() { Now = old })
}

func TestMerge_EmptyProducesNothing(t *testing.T) {
	require.Empty(t, Merge(nil, nil))
}

func TestMerge_IdentityAndProgressPreservesSince(t *testing.T) {
	t0 := time.Unix(0, 0)
	t5 := t0.Add(5 * time.Second)
	withNow(t, t5)

	prior := []model.TaskSnapshot{{TID: 42, Ctxsw: 100, Since: t0}}
	fresh := []model.TaskSnapshot{{TID: 42, Ctxsw: 100}}

	merged := Merge(prior, fresh)
	require.Len(t, merged, 1)
	assert.True(t, merged[0].Since.Equal(t0))
}

func TestMerge_CtxswAdvanceResetsSince(t *testing.T) {
	t0 := time.Unix(0, 0)
	t4 := t0.Add(4 * time.Second)
	withNow(t, t4)

	prior := []model.TaskSnapshot{{TID: 42, Ctxsw: 100, Since: t0}}
	fresh := []model.TaskSnapshot{{TID: 42, Ctxsw: 101}}

	merged := Merge(prior, fresh)
	require.Len(t, merged, 1)
	assert.True(t, merged[0].Since.Equal(t4))
}

func TestMerge_NewTIDGetsNow(t *testing.T) {
	now := time.Unix(10, 0)
	withNow(t, now)

	merged := Merge(nil, []model.TaskSnapshot{{TID: 7, Ctxsw: 1}})
	require.Len(t, merged, 1)
	assert.True(t, merged[0].Since.Equal(now))
}

func TestMerge_DisappearedEntryIsDiscarded(t *testing.T) {
	prior := []model.TaskSnapshot{{TID: 1, Ctxsw: 1}, {TID: 2, Ctxsw: 1}}
	fresh := []model.TaskSnapshot{{TID: 1, Ctxsw: 1}}

	merged := Merge(prior, fresh)
	require.Len(t, merged, 1)
	assert.Equal(t, 1, merged[0].TID)
}

func TestMerge_SelfReMergeIsIdempotent(t *testing.T) {
	t0 := time.Unix(0, 0)
	withNow(t, t0.Add(time.Second))

	prior := []model.TaskSnapshot{{TID: 1, Ctxsw: 5, Since: t0}}
	first := Merge(prior, []model.TaskSnapshot{{TID: 1, Ctxsw: 5}})
	second := Merge(first, []model.TaskSnapshot{{TID: 1, Ctxsw: 5}})

	assert.Equal(t, first[0].Since, second[0].Since)
}
