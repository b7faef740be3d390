// Package metrics exposes an optional Prometheus endpoint reporting
// detection and boost activity. It is optional at run time:
// pkg/orchestrator holds a *Recorder in Deps.Metrics, which stays nil
// unless a metrics address is configured, and every call site checks for
// nil first.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the set of counters and gauges the core reports into.
type Recorder struct {
	Detections     *prometheus.CounterVec
	Boosts         *prometheus.CounterVec
	BoostFailures  *prometheus.CounterVec
	Restores       prometheus.Counter
	ActiveBoosters prometheus.Gauge
}

// New registers the daemon's metrics against a fresh registry.
func New() (*Recorder, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		Detections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stalld",
			Name:      "detections_total",
			Help:      "Starvation detections, by cpu.",
		}, []string{"cpu"}),
		Boosts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stalld",
			Name:      "boosts_total",
			Help:      "Boost sessions opened, by cpu and method.",
		}, []string{"cpu", "method"}),
		BoostFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stalld",
			Name:      "boost_failures_total",
			Help:      "Boost sessions that failed to apply or restore, by reason.",
		}, []string{"reason"}),
		Restores: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stalld",
			Name:      "restores_total",
			Help:      "Scheduling attribute restorations performed.",
		}),
		ActiveBoosters: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "stalld",
			Name:      "active_boosters",
			Help:      "Current size of the active_boosters set.",
		}),
	}, reg
}

// Serve runs an HTTP server exposing reg on addr until ctx is canceled. It
// is a thin wrapper so cmd/stalld doesn't need to know promhttp's handler
// shape.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
