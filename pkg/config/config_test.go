package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clrkwllms/stalld/pkg/model"
)

func validRaw() Raw {
	return Raw{
		ThresholdSeconds:     5,
		GranularitySeconds:   1,
		BoostRuntimeNanos:    20000,
		BoostPeriodNanos:     1000000000,
		BoostDurationSeconds: 3,
		Strategy:             "power",
	}
}

func TestNew_Valid(t *testing.T) {
	cfg, err := New(validRaw())
	require.NoError(t, err)
	assert.Equal(t, model.Power, cfg.Strategy)
	assert.Equal(t, SourceAuto, cfg.Source)
}

func TestNew_RuntimeGreaterThanPeriodIsConfigError(t *testing.T) {
	r := validRaw()
	r.BoostRuntimeNanos = r.BoostPeriodNanos + 1
	_, err := New(r)
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestNew_ZeroRuntimeIsConfigError(t *testing.T) {
	r := validRaw()
	r.BoostRuntimeNanos = 0
	_, err := New(r)
	require.Error(t, err)
}

func TestNew_RuntimeEqualsPeriodIsLegal(t *testing.T) {
	r := validRaw()
	r.BoostRuntimeNanos = r.BoostPeriodNanos
	_, err := New(r)
	require.NoError(t, err)
}

func TestNew_PowerWithForcedFixedPriorityIsConfigError(t *testing.T) {
	r := validRaw()
	r.ForceFixedPriority = true
	_, err := New(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadline method")
}

func TestNew_UnknownStrategy(t *testing.T) {
	r := validRaw()
	r.Strategy = "bogus"
	_, err := New(r)
	require.Error(t, err)
}

func TestNew_InvalidRegex(t *testing.T) {
	r := validRaw()
	r.IgnoreComm = []string{"("}
	_, err := New(r)
	require.Error(t, err)
}

func TestMatchesAny(t *testing.T) {
	cfg, err := New(validRaw())
	require.NoError(t, err)
	assert.False(t, MatchesAny(cfg.IgnoreComm, "anything"))

	r := validRaw()
	r.IgnoreComm = []string{"^ksoftirqd/"}
	cfg, err = New(r)
	require.NoError(t, err)
	assert.True(t, MatchesAny(cfg.IgnoreComm, "ksoftirqd/0"))
	assert.False(t, MatchesAny(cfg.IgnoreComm, "myapp"))
}
