// Package metrics exposes valuation run metrics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/aristath/valuation/internal/modules/valuation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "valuation"

// Recorder collects valuation run metrics on its own registry.
// It implements valuation.Observer.
type Recorder struct {
	registry *prometheus.Registry

	runs       prometheus.Counter
	degenerate prometheus.Counter
	reads      prometheus.Counter
	duration   prometheus.Histogram
	bestEnergy prometheus.Gauge
	lastValue  prometheus.Gauge
	energies   prometheus.Histogram
}

// NewRecorder creates a recorder with Go runtime and process collectors registered
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed valuation runs",
		}),
		degenerate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degenerate_runs_total",
			Help:      "Runs whose best sample selected no revenue or asset bit",
		}),
		reads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads_total",
			Help:      "Annealing reads performed",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a valuation run",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		bestEnergy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_energy",
			Help:      "Best sample energy of the last run",
		}),
		lastValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_valuation_millions",
			Help:      "Decoded valuation of the last run",
		}),
		energies: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sample_energy_spread",
			Help:      "Energy distance of every read from the best read of its run",
			Buckets:   prometheus.ExponentialBuckets(1, 10, 8),
		}),
	}

	r.registry.MustRegister(
		r.runs,
		r.degenerate,
		r.reads,
		r.duration,
		r.bestEnergy,
		r.lastValue,
		r.energies,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// ObserveRun records a completed run
func (r *Recorder) ObserveRun(result *valuation.Result) {
	r.runs.Inc()
	if result.Decoded.Degenerate {
		r.degenerate.Inc()
	}
	r.reads.Add(float64(len(result.Samples)))
	r.duration.Observe(result.Duration.Seconds())
	r.bestEnergy.Set(result.Best.Energy)
	r.lastValue.Set(result.Decoded.Valuation)

	for _, s := range result.Samples {
		r.energies.Observe(s.Energy - result.Best.Energy)
	}
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
