//go:build linux

package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clrkwllms/stalld/pkg/model"
)

func newTestSource() *TextualSource {
	s := NewTextual(func(tid int) (bool, error) { return true, nil })
	s.tgid = func(tid int) (int, bool) { return tid * 1000, true }
	return s
}

const statelessDump = `
cpu#0, 3 runnable tasks
  .nr_switches                   : 12345
runnable tasks:
            task   PID         tree-key  switches  prio
----------------------------------------------------------------
R          a.out  101           0.000000       5     20
           helper  102          0.000000      10      0
           other   103          0.000000      15     10

cpu#1, 1 runnable tasks
runnable tasks:
            task   PID         tree-key  switches  prio
----------------------------------------------------------------
R          idle    201          0.000000       1    120
`

func TestTextual_StatelessSkipsRunningAndProbesRest(t *testing.T) {
	s := newTestSource()
	out := s.parse([]byte(statelessDump), map[int]bool{0: true, 1: true})

	cpu0 := out[0]
	require.Len(t, cpu0.Waiting, 2, "R row skipped, both other rows probed as running")
	tids := map[int]bool{}
	for _, w := range cpu0.Waiting {
		tids[w.TID] = true
		assert.Equal(t, w.TID*1000, w.TGID)
	}
	assert.True(t, tids[102])
	assert.True(t, tids[103])
	assert.False(t, tids[101], "the R-marked row is the running task and must be excluded")

	cpu1 := out[1]
	assert.Empty(t, cpu1.Waiting, "only row was the running marker")
}

func TestTextual_ProbeExcludesNonRunning(t *testing.T) {
	s := NewTextual(func(tid int) (bool, error) { return tid != 102, nil })
	s.tgid = func(tid int) (int, bool) { return 0, false }

	out := s.parse([]byte(statelessDump), map[int]bool{0: true})
	cpu0 := out[0]
	require.Len(t, cpu0.Waiting, 1)
	assert.Equal(t, 103, cpu0.Waiting[0].TID)
}

const statefulDump = `
cpu#3, 2 runnable tasks
  .nr_running                    : 2
  .rt_nr_running                 : 1
runnable tasks:
 state          task   PID         tree-key  switches  prio
----------------------------------------------------------------
 R             rtapp  301          0.000000      99     99
 S             idle2  302          0.000000       3    120
`

func TestTextual_StatefulUsesStateColumnDirectly(t *testing.T) {
	s := newTestSource()
	out := s.parse([]byte(statefulDump), map[int]bool{3: true})

	cpu3 := out[3]
	assert.Equal(t, 2, cpu3.NrRunning)
	assert.Equal(t, 1, cpu3.NrRTRunning)
	require.Len(t, cpu3.Waiting, 1, "only the R-state row is runnable")
	assert.Equal(t, 301, cpu3.Waiting[0].TID)
}

func TestTextual_HasStarvingCandidate(t *testing.T) {
	s := newTestSource()
	assert.False(t, s.HasStarvingCandidate(model.CpuState{}))
	assert.True(t, s.HasStarvingCandidate(model.CpuState{Waiting: []model.TaskSnapshot{{TID: 1}}}))
}

func TestDetectColumns(t *testing.T) {
	cols := detectColumns("            task   PID         tree-key  switches  prio     wait-time")
	require.True(t, cols.ready)
	assert.Equal(t, 0, cols.task)
	assert.Equal(t, 1, cols.pid)
}

func TestParseCPUHeader(t *testing.T) {
	id, ok := parseCPUHeader("cpu#7, 2 runnable tasks")
	require.True(t, ok)
	assert.Equal(t, 7, id)
}
