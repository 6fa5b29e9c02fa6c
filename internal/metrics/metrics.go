// Package metrics provides the centralized Prometheus metrics registry for
// the backtesting service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	BacktestRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quantbench",
		Name:      "backtest_runs_total",
		Help:      "Total number of backtest runs by terminal status",
	}, []string{"status"})
	OptimizationSweepsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quantbench",
		Name:      "optimization_sweeps_total",
		Help:      "Total number of optimization sweeps started",
	})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quantbench",
		Name:      "result_cache_hits_total",
		Help:      "Total number of optimization result cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quantbench",
		Name:      "result_cache_misses_total",
		Help:      "Total number of optimization result cache misses",
	})
	SignalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quantbench",
		Name:      "signals_total",
		Help:      "Total number of strategy signals by side",
	}, []string{"side"})
)

// Gauge metrics
var (
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quantbench",
		Name:      "queue_depth",
		Help:      "Number of backtests waiting in the queue",
	})
	RunningBacktests = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quantbench",
		Name:      "running_backtests",
		Help:      "Number of backtests currently executing",
	})
)

// Histogram metrics
var (
	BacktestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "quantbench",
		Name:      "backtest_duration_seconds",
		Help:      "Duration of backtest runs in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
	})
	CandleFetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quantbench",
		Name:      "candle_fetch_duration_seconds",
		Help:      "Duration of market data fetches in seconds by provider",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		// Register counter metrics
		registry.MustRegister(BacktestRunsTotal)
		registry.MustRegister(OptimizationSweepsTotal)
		registry.MustRegister(CacheHitsTotal)
		registry.MustRegister(CacheMissesTotal)
		registry.MustRegister(SignalsTotal)

		// Register gauge metrics
		registry.MustRegister(QueueDepth)
		registry.MustRegister(RunningBacktests)

		// Register histogram metrics
		registry.MustRegister(BacktestDuration)
		registry.MustRegister(CandleFetchDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordBacktestRun records a finished backtest with its terminal status.
func RecordBacktestRun(status string, durationSeconds float64) {
	BacktestRunsTotal.WithLabelValues(status).Inc()
	BacktestDuration.Observe(durationSeconds)
}

// RecordOptimizationSweep records the start of an optimization sweep.
func RecordOptimizationSweep() {
	OptimizationSweepsTotal.Inc()
}

// RecordCacheHit records an optimization result cache hit.
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records an optimization result cache miss.
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordSignal records a strategy signal by side.
func RecordSignal(side string) {
	SignalsTotal.WithLabelValues(side).Inc()
}

// UpdateQueueDepth updates the queue depth gauge.
func UpdateQueueDepth(depth float64) {
	QueueDepth.Set(depth)
}

// UpdateRunningBacktests updates the running backtests gauge.
func UpdateRunningBacktests(count float64) {
	RunningBacktests.Set(count)
}

// ObserveCandleFetch records one market data fetch duration.
func ObserveCandleFetch(provider string, durationSeconds float64) {
	CandleFetchDuration.WithLabelValues(provider).Observe(durationSeconds)
}
