//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/clrkwllms/stalld/pkg/boost"
	"github.com/clrkwllms/stalld/pkg/config"
	"github.com/clrkwllms/stalld/pkg/detect"
	"github.com/clrkwllms/stalld/pkg/metrics"
	"github.com/clrkwllms/stalld/pkg/model"
	"github.com/clrkwllms/stalld/pkg/orchestrator"
	"github.com/clrkwllms/stalld/pkg/source"
)

func main() {
	var f flags

	root := &cobra.Command{
		Use:   "stalld",
		Short: "Starve-avoidance daemon for SCHED_OTHER threads",
		Long: `stalld watches runnable, non-running threads on the monitored CPU set and
temporarily boosts any thread that has not been scheduled for at least its
starvation threshold, using SCHED_DEADLINE when available and SCHED_FIFO
otherwise.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd, &f)
		},
	}
	bindFlags(root, &f)

	if err := root.Execute(); err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cobra.Command, f *flags) error {
	log := slog.Default()

	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	if len(cfg.CPUs) == 0 {
		cfg.CPUs = allOnlineCPUs()
	}

	if err := boost.CheckCapability(); err != nil {
		return fmt.Errorf("capability check: %w", err)
	}

	if err := boost.CheckRTThrottle(); err != nil {
		return fmt.Errorf("rt-throttle gate: %w", err)
	}

	method := boost.ProbeMethod(cfg.ForceFixedPriority)
	log.Info("boost method selected", "method", method)

	if err := boost.RequireVectorCompatible(cfg.Strategy, method); err != nil {
		return err
	}

	src, err := openSource(cfg)
	if err != nil {
		return fmt.Errorf("runqueue source: %w", err)
	}
	defer src.Close()

	engine := boost.New(cfg, method)
	det := detect.New(cfg, func() {
		log.Warn("fair server present: some runnable threads may be invisible to the configured source")
	})

	deps := orchestrator.Deps{
		Cfg:      cfg,
		Source:   src,
		Idle:     source.NewIdleGate(cfg.IdleGateEnabled),
		Detector: det,
		Engine:   engine,
		Log:      log,
		CPUs:     cfg.CPUs,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		rec, reg := metrics.New()
		deps.Metrics = rec
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.MetricsAddr, reg)
		})
	}

	strategy, err := buildStrategy(cfg, deps)
	if err != nil {
		return err
	}

	g.Go(func() error {
		return strategy.Run(gctx)
	})

	return g.Wait()
}

func buildStrategy(cfg *config.Config, deps orchestrator.Deps) (orchestrator.Strategy, error) {
	switch cfg.Strategy {
	case model.Power:
		return orchestrator.NewPower(deps)
	case model.Adaptive:
		return orchestrator.NewAdaptive(deps), nil
	case model.Aggressive:
		return orchestrator.NewAggressive(deps), nil
	default:
		return nil, fmt.Errorf("unknown strategy %v", cfg.Strategy)
	}
}

// openSource tries backends in the order the config requests. SourceAuto
// tries textual first (cheaper, broadly available) and falls back to
// tracepoint; any other error is fatal immediately. If the tracepoint
// backend fails as well, the result is a *boost.EnvironmentError.
func openSource(cfg *config.Config) (source.Source, error) {
	switch cfg.Source {
	case config.SourceTextual:
		return initSource(source.NewTextual(nil))
	case config.SourceTracepoint:
		return initSource(source.NewTracepoint())
	default:
		s, err := initSource(source.NewTextual(nil))
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, source.ErrUnavailable) {
			return nil, err
		}
		s, err = initSource(source.NewTracepoint())
		if err != nil {
			return nil, &boost.EnvironmentError{Reason: fmt.Sprintf("no runqueue source available: %v", err)}
		}
		return s, nil
	}
}

func initSource(s source.Source) (source.Source, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

func allOnlineCPUs() []int {
	n := runtime.NumCPU()
	cpus := make([]int, n)
	for i := range cpus {
		cpus[i] = i
	}
	return cpus
}
