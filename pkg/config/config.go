// Package config holds the frozen, validated daemon configuration. Once
// built by New, a Config is never mutated; every package downstream reads
// it concurrently without locking.
package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/clrkwllms/stalld/pkg/model"
)

// SourceKind selects which Runqueue Source backend to use.
type SourceKind int

const (
	// SourceAuto lets the daemon probe textual first, then tracepoint.
	SourceAuto SourceKind = iota
	SourceTextual
	SourceTracepoint
)

func (k SourceKind) String() string {
	switch k {
	case SourceTextual:
		return "textual"
	case SourceTracepoint:
		return "tracepoint"
	default:
		return "auto"
	}
}

// Config is frozen once New returns it.
type Config struct {
	// CPUs is the monitored CPU set. Empty means "all online CPUs".
	CPUs []int

	// Threshold is the starvation threshold, in seconds: a runnable thread
	// whose context-switch counter has not advanced for at least this long
	// is a detection candidate.
	Threshold time.Duration
	// Granularity is the sleep between cycles.
	Granularity time.Duration

	// BoostRuntime and BoostPeriod parameterize the deadline method, in
	// nanoseconds. 0 < Runtime <= Period.
	BoostRuntime time.Duration
	BoostPeriod  time.Duration
	// FixedPriority is the SCHED_FIFO priority used when the deadline
	// method is unavailable or forced off.
	FixedPriority int
	// BoostDuration is how long a single boost session is held open.
	BoostDuration time.Duration

	Strategy           model.Strategy
	ForceFixedPriority bool
	LogOnly            bool
	IdleGateEnabled    bool
	Source             SourceKind

	IgnoreComm     []*regexp.Regexp
	IgnoreTgidName []*regexp.Regexp

	// MetricsAddr, if non-empty, serves Prometheus metrics on this address.
	MetricsAddr string
}

// ConfigError is returned for any problem detectable from the Config
// values alone, without touching the host. It is always fatal at startup.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "config: " + e.Reason }

// Raw mirrors the flag/CLI-facing shape of a Config before regexes are
// compiled and durations validated. cmd/stalld builds one of these from
// cobra/viper and passes it to New.
type Raw struct {
	CPUs                 []int
	ThresholdSeconds     float64
	GranularitySeconds   float64
	BoostRuntimeNanos    int64
	BoostPeriodNanos     int64
	FixedPriority        int
	BoostDurationSeconds float64
	Strategy             string
	ForceFixedPriority   bool
	LogOnly              bool
	IdleGateEnabled      bool
	Source               string
	IgnoreComm           []string
	IgnoreTgidName       []string
	MetricsAddr          string
}

// New validates r and compiles it into a frozen Config, or returns a
// *ConfigError describing the first problem found.
func New(r Raw) (*Config, error) {
	cfg := &Config{
		CPUs:               append([]int(nil), r.CPUs...),
		Threshold:          durSeconds(r.ThresholdSeconds),
		Granularity:        durSeconds(r.GranularitySeconds),
		BoostRuntime:       time.Duration(r.BoostRuntimeNanos),
		BoostPeriod:        time.Duration(r.BoostPeriodNanos),
		FixedPriority:      r.FixedPriority,
		BoostDuration:      durSeconds(r.BoostDurationSeconds),
		ForceFixedPriority: r.ForceFixedPriority,
		LogOnly:            r.LogOnly,
		IdleGateEnabled:    r.IdleGateEnabled,
		MetricsAddr:        r.MetricsAddr,
	}

	strat, err := parseStrategy(r.Strategy)
	if err != nil {
		return nil, err
	}
	cfg.Strategy = strat

	src, err := parseSource(r.Source)
	if err != nil {
		return nil, err
	}
	cfg.Source = src

	if r.BoostRuntimeNanos <= 0 {
		return nil, &ConfigError{Reason: "boost runtime must be > 0"}
	}
	if r.BoostPeriodNanos <= 0 {
		return nil, &ConfigError{Reason: "boost period must be > 0"}
	}
	if r.BoostRuntimeNanos > r.BoostPeriodNanos {
		return nil, &ConfigError{Reason: "boost runtime must be <= boost period"}
	}
	if cfg.Threshold <= 0 {
		return nil, &ConfigError{Reason: "threshold must be > 0"}
	}
	if cfg.Granularity <= 0 {
		return nil, &ConfigError{Reason: "granularity must be > 0"}
	}
	if cfg.BoostDuration <= 0 {
		return nil, &ConfigError{Reason: "boost duration must be > 0"}
	}
	if cfg.Strategy == model.Power && cfg.ForceFixedPriority {
		return nil, &ConfigError{Reason: "power strategy requires the deadline method; cannot force fixed-priority"}
	}

	cfg.IgnoreComm, err = compileAll(r.IgnoreComm)
	if err != nil {
		return nil, err
	}
	cfg.IgnoreTgidName, err = compileAll(r.IgnoreTgidName)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func durSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func parseStrategy(s string) (model.Strategy, error) {
	switch s {
	case "", "power":
		return model.Power, nil
	case "adaptive":
		return model.Adaptive, nil
	case "aggressive":
		return model.Aggressive, nil
	default:
		return 0, &ConfigError{Reason: fmt.Sprintf("unknown strategy %q", s)}
	}
}

func parseSource(s string) (SourceKind, error) {
	switch s {
	case "", "auto":
		return SourceAuto, nil
	case "textual":
		return SourceTextual, nil
	case "tracepoint":
		return SourceTracepoint, nil
	default:
		return 0, &ConfigError{Reason: fmt.Sprintf("unknown source %q", s)}
	}
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, &ConfigError{Reason: fmt.Sprintf("invalid pattern %q: %v", p, err)}
		}
		out = append(out, re)
	}
	return out, nil
}

// MatchesAny reports whether s matches any of the compiled patterns. A nil
// or empty pattern set never matches.
func MatchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
