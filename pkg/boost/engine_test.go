package boost

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clrkwllms/stalld/pkg/config"
	"github.com/clrkwllms/stalld/pkg/model"
)

func testConfig(t *testing.T, mutate func(*config.Raw)) *config.Config {
	t.Helper()
	r := config.Raw{
		ThresholdSeconds:     1,
		GranularitySeconds:   1,
		BoostRuntimeNanos:    int64(10 * time.Millisecond),
		BoostPeriodNanos:     int64(100 * time.Millisecond),
		FixedPriority:        20,
		BoostDurationSeconds: 0.05,
	}
	if mutate != nil {
		mutate(&r)
	}
	cfg, err := config.New(r)
	require.NoError(t, err)
	return cfg
}

type fakeHooks struct {
	saveCalls    []int
	restoreCalls []int
	applyDCalls  []int
	applyFCalls  []int

	saveErr    error
	applyDErr  error
	applyFErr  error
	restoreErr error
}

func (f *fakeHooks) save(tid int) (model.SchedAttr, error) {
	f.saveCalls = append(f.saveCalls, tid)
	if f.saveErr != nil {
		return model.SchedAttr{}, f.saveErr
	}
	return model.SchedAttr{Policy: 0, Priority: 0}, nil
}

func (f *fakeHooks) restore(tid int, _ model.SchedAttr) error {
	f.restoreCalls = append(f.restoreCalls, tid)
	return f.restoreErr
}

func (f *fakeHooks) applyDeadline(tid int, _, _ uint64) error {
	f.applyDCalls = append(f.applyDCalls, tid)
	return f.applyDErr
}

func (f *fakeHooks) applyFixed(tid, _ int) error {
	f.applyFCalls = append(f.applyFCalls, tid)
	return f.applyFErr
}

func newTestEngine(cfg *config.Config, method model.Method, h *fakeHooks) (*Engine, *[]time.Duration) {
	e := newEngine(cfg, method, h.save, h.restore, h.applyDeadline, h.applyFixed)
	var slept []time.Duration
	var elapsed time.Duration
	base := time.Unix(0, 0)
	e.sleep = func(d time.Duration) { slept = append(slept, d); elapsed += d }
	e.now = func() time.Time { return base.Add(elapsed) }
	return e, &slept
}

func TestBoost_DeadlineSession_AppliesSleepsRestores(t *testing.T) {
	cfg := testConfig(t, nil)
	h := &fakeHooks{}
	e, slept := newTestEngine(cfg, model.MethodDeadline, h)

	err := e.Boost(model.TaskSnapshot{TID: 42})
	require.NoError(t, err)
	require.Equal(t, []int{42}, h.saveCalls)
	require.Equal(t, []int{42}, h.applyDCalls)
	require.Equal(t, []int{42}, h.restoreCalls)
	require.Equal(t, []time.Duration{cfg.BoostDuration}, *slept)
	require.False(t, e.active.isActive(42), "session must close active_boosters")
}

func TestBoost_AlreadyBoosted_ReturnsSentinel(t *testing.T) {
	cfg := testConfig(t, nil)
	h := &fakeHooks{}
	e, _ := newTestEngine(cfg, model.MethodDeadline, h)
	e.active.tryAcquire(42)

	err := e.Boost(model.TaskSnapshot{TID: 42})
	require.True(t, IsAlreadyBoosted(err))
	require.Empty(t, h.saveCalls, "a skipped boost must not touch scheduling attributes")
}

func TestBoost_LogOnly_NoOp(t *testing.T) {
	cfg := testConfig(t, func(r *config.Raw) { r.LogOnly = true })
	h := &fakeHooks{}
	e, slept := newTestEngine(cfg, model.MethodDeadline, h)

	require.NoError(t, e.Boost(model.TaskSnapshot{TID: 1}))
	require.Empty(t, h.saveCalls)
	require.Empty(t, *slept)
	require.False(t, e.active.isActive(1))
}

func TestBoost_SaveFailure_ClearsActiveAndPropagates(t *testing.T) {
	cfg := testConfig(t, nil)
	h := &fakeHooks{saveErr: errors.New("no such thread")}
	e, _ := newTestEngine(cfg, model.MethodDeadline, h)

	err := e.Boost(model.TaskSnapshot{TID: 5})
	require.ErrorIs(t, err, h.saveErr)
	require.False(t, e.active.isActive(5))
	require.Empty(t, h.applyDCalls, "must not apply after a failed save")
}

func TestBoost_ApplyFailure_NoSleepNoRestore(t *testing.T) {
	cfg := testConfig(t, nil)
	h := &fakeHooks{applyDErr: &PolicyError{TID: 5, Reason: "denied"}}
	e, slept := newTestEngine(cfg, model.MethodDeadline, h)

	err := e.Boost(model.TaskSnapshot{TID: 5})
	require.Error(t, err)
	require.Empty(t, *slept)
	require.Empty(t, h.restoreCalls)
	require.False(t, e.active.isActive(5))
}

func TestBoost_RestoreFailure_StillClearsActive(t *testing.T) {
	cfg := testConfig(t, nil)
	h := &fakeHooks{restoreErr: &TargetVanished{TID: 9}}
	e, _ := newTestEngine(cfg, model.MethodDeadline, h)

	err := e.Boost(model.TaskSnapshot{TID: 9})
	var vanished *TargetVanished
	require.ErrorAs(t, err, &vanished)
	require.False(t, e.active.isActive(9))
}

func TestBoostFixedPriority_LoopsUntilDuration(t *testing.T) {
	cfg := testConfig(t, func(r *config.Raw) {
		r.BoostRuntimeNanos = int64(10 * time.Millisecond)
		r.BoostPeriodNanos = int64(20 * time.Millisecond)
		r.BoostDurationSeconds = 0.045 // expect 3 quanta of 20ms each (elapsed 20, 40, 60ms: only the 3rd crosses 45)
	})
	h := &fakeHooks{}
	e, slept := newTestEngine(cfg, model.MethodFixedPriority, h)

	require.NoError(t, e.Boost(model.TaskSnapshot{TID: 3}))
	require.True(t, len(h.applyFCalls) >= 2, "must re-apply fixed priority every quantum")
	require.Equal(t, len(h.applyFCalls), len(h.restoreCalls))
	require.False(t, e.active.isActive(3))
	require.NotEmpty(t, *slept)
}

func TestBoostVector_OpensAllSleepsOnceRestoresAll(t *testing.T) {
	cfg := testConfig(t, nil)
	h := &fakeHooks{}
	e, slept := newTestEngine(cfg, model.MethodDeadline, h)

	results := e.BoostVector([]model.TaskSnapshot{{TID: 1}, {TID: 2}, {TID: 3}})
	require.Len(t, results, 3)
	for _, r := range results {
		require.NoError(t, r.Err)
	}
	require.ElementsMatch(t, []int{1, 2, 3}, h.applyDCalls)
	require.Len(t, *slept, 1, "vectorized boost sleeps exactly once for the whole batch")
	require.ElementsMatch(t, []int{1, 2, 3}, h.restoreCalls)
}

func TestBoostVector_SkipsAlreadyBoosted(t *testing.T) {
	cfg := testConfig(t, nil)
	h := &fakeHooks{}
	e, _ := newTestEngine(cfg, model.MethodDeadline, h)
	e.active.tryAcquire(2)

	results := e.BoostVector([]model.TaskSnapshot{{TID: 1}, {TID: 2}})
	require.ElementsMatch(t, []int{1}, h.applyDCalls)
	found := false
	for _, r := range results {
		if r.TID == 2 {
			found = true
			require.True(t, IsAlreadyBoosted(r.Err))
		}
	}
	require.True(t, found)
}

func TestBoostVector_EmptyOrLogOnlyDoesNothing(t *testing.T) {
	cfg := testConfig(t, func(r *config.Raw) { r.LogOnly = true })
	h := &fakeHooks{}
	e, slept := newTestEngine(cfg, model.MethodDeadline, h)

	require.Empty(t, e.BoostVector([]model.TaskSnapshot{{TID: 1}}))
	require.Empty(t, h.applyDCalls)
	require.Empty(t, *slept)

	e2, slept2 := newTestEngine(testConfig(t, nil), model.MethodDeadline, h)
	require.Empty(t, e2.BoostVector(nil))
	require.Empty(t, h.applyDCalls)
	require.Empty(t, *slept2)
}

func TestRequireVectorCompatible(t *testing.T) {
	require.NoError(t, RequireVectorCompatible(model.Power, model.MethodDeadline))
	require.NoError(t, RequireVectorCompatible(model.Adaptive, model.MethodFixedPriority))
	err := RequireVectorCompatible(model.Power, model.MethodFixedPriority)
	require.Error(t, err)
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
