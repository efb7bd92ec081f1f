// Package metrics registers the Prometheus collectors for route optimization.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "steerpoint_runs_total",
		Help: "Total strategy runs by strategy and outcome",
	}, []string{"strategy", "outcome"})
	RunDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "steerpoint_run_duration_seconds",
		Help:    "Strategy run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"strategy"})
	BestCostMiles = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "steerpoint_best_cost_miles",
		Help:    "Cost of the best route a strategy returned",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"strategy"})
	MatrixBuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "steerpoint_matrix_build_seconds",
		Help:    "Distance matrix construction time in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})
	JobsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "steerpoint_jobs_in_flight",
		Help: "Optimization jobs currently running",
	})
)

func init() {
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(RunDurationSeconds)
	prometheus.MustRegister(BestCostMiles)
	prometheus.MustRegister(MatrixBuildSeconds)
	prometheus.MustRegister(JobsInFlight)
}

// ObserveRun records the outcome of one strategy run. cost is ignored when
// err is non-nil.
func ObserveRun(strategy string, started time.Time, cost float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	RunsTotal.WithLabelValues(strategy, outcome).Inc()
	RunDurationSeconds.WithLabelValues(strategy).Observe(time.Since(started).Seconds())
	if err == nil {
		BestCostMiles.WithLabelValues(strategy).Observe(cost)
	}
}

// Handler exposes the registered collectors.
func Handler() http.Handler { return promhttp.Handler() }
