//go:build linux

package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clrkwllms/stalld/pkg/config"
)

// flags is the cobra-facing shape of every tunable, bound directly to
// command-line flags and layered under an optional config file via viper.
type flags struct {
	cpus []int

	thresholdSeconds     float64
	granularitySeconds   float64
	boostRuntimeNanos    int64
	boostPeriodNanos     int64
	fixedPriority        int
	boostDurationSeconds float64

	strategy           string
	forceFixedPriority bool
	logOnly            bool
	idleGateEnabled    bool
	source             string

	ignoreComm     []string
	ignoreTgidName []string

	metricsAddr string
	configFile  string
}

func bindFlags(cmd *cobra.Command, f *flags) {
	fs := cmd.Flags()

	fs.IntSliceVar(&f.cpus, "cpus", nil, "CPUs to monitor (empty = all online CPUs)")

	fs.Float64Var(&f.thresholdSeconds, "threshold", 60, "starvation threshold in seconds")
	fs.Float64Var(&f.granularitySeconds, "granularity", 1, "sampling granularity in seconds")
	fs.Int64Var(&f.boostRuntimeNanos, "boost-runtime-ns", int64(20_000_000), "SCHED_DEADLINE runtime in nanoseconds")
	fs.Int64Var(&f.boostPeriodNanos, "boost-period-ns", int64(1_000_000_000), "SCHED_DEADLINE period in nanoseconds")
	fs.IntVar(&f.fixedPriority, "fixed-priority", 98, "SCHED_FIFO priority used when the deadline method is unavailable")
	fs.Float64Var(&f.boostDurationSeconds, "boost-duration", 3, "how long a single boost session is held open, in seconds")

	fs.StringVar(&f.strategy, "sched", "power", "orchestration strategy: power, adaptive, or aggressive")
	fs.BoolVar(&f.forceFixedPriority, "force-fifo", false, "force SCHED_FIFO even when SCHED_DEADLINE is available")
	fs.BoolVar(&f.logOnly, "log-only", false, "detect and log starvation without boosting")
	fs.BoolVar(&f.idleGateEnabled, "idle-gate", true, "skip a CPU's cycle when its /proc/stat idle counter has not advanced since the last cycle")
	fs.StringVar(&f.source, "source", "auto", "runqueue source backend: auto, textual, or tracepoint")

	fs.StringSliceVar(&f.ignoreComm, "ignore", nil, "thread names to never boost (regular expressions)")
	fs.StringSliceVar(&f.ignoreTgidName, "ignore-process", nil, "process names to never boost (regular expressions)")

	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (empty disables)")
	fs.StringVar(&f.configFile, "config", "", "optional config file (yaml, toml, json) layered under these flags")
}

// loadConfig merges any --config file under the flags the user actually
// set, then validates the result into a frozen config.Config. Flags passed
// explicitly on the command line always win over the config file.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STALLD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if f.configFile != "" {
		v.SetConfigFile(f.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	raw := config.Raw{
		CPUs:                 f.cpus,
		ThresholdSeconds:     v.GetFloat64("threshold"),
		GranularitySeconds:   v.GetFloat64("granularity"),
		BoostRuntimeNanos:    v.GetInt64("boost-runtime-ns"),
		BoostPeriodNanos:     v.GetInt64("boost-period-ns"),
		FixedPriority:        v.GetInt("fixed-priority"),
		BoostDurationSeconds: v.GetFloat64("boost-duration"),
		Strategy:             v.GetString("sched"),
		ForceFixedPriority:   v.GetBool("force-fifo"),
		LogOnly:              v.GetBool("log-only"),
		IdleGateEnabled:      v.GetBool("idle-gate"),
		Source:               v.GetString("source"),
		IgnoreComm:           v.GetStringSlice("ignore"),
		IgnoreTgidName:       v.GetStringSlice("ignore-process"),
		MetricsAddr:          v.GetString("metrics-addr"),
	}

	return config.New(raw)
}
