// Package telemetry exposes dashboard activity as Prometheus metrics.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"salesdash/internal/models"
)

const namespace = "salesdash"

// Telemetry owns a private registry; nothing is registered globally
type Telemetry struct {
	registry *prometheus.Registry

	loads        *prometheus.CounterVec
	rows         prometheus.Gauge
	loadDuration prometheus.Histogram
	recomputes   *prometheus.CounterVec
	reducerTime  *prometheus.HistogramVec
	failures     *prometheus.CounterVec
	empties      *prometheus.CounterVec
}

// New creates a Telemetry with its collectors registered
func New() *Telemetry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Telemetry{
		registry: reg,
		loads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_loads_total",
			Help:      "Dataset load attempts by result",
		}, []string{"result"}),
		rows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_rows",
			Help:      "Rows in the cached dataset",
		}),
		loadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dataset_load_duration_seconds",
			Help:      "Time spent reading and parsing the source",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),
		recomputes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recompute_total",
			Help:      "Dashboard recomputations by aggregate scope",
		}, []string{"scope"}),
		reducerTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reducer_duration_seconds",
			Help:      "Reducer latency by chart",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~400ms
		}, []string{"chart"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reducer_failures_total",
			Help:      "Reducer failures by chart",
		}, []string{"chart"}),
		empties: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_results_total",
			Help:      "Charts whose input matched no rows",
		}, []string{"chart"}),
	}
}

// ObserveLoad records one dataset load attempt. Its signature matches cache.LoadFunc.
func (t *Telemetry) ObserveLoad(ds *models.Dataset, took time.Duration, err error) {
	if err != nil {
		t.loads.WithLabelValues("error").Inc()
		return
	}
	t.loads.WithLabelValues("ok").Inc()
	t.loadDuration.Observe(took.Seconds())
	t.rows.Set(float64(ds.Len()))
}

// Recompute counts one recomputation pass
func (t *Telemetry) Recompute(scope string) {
	t.recomputes.WithLabelValues(scope).Inc()
}

// Reducer records how long one chart's reducer took and whether it failed
func (t *Telemetry) Reducer(chart string, took time.Duration, failed bool) {
	t.reducerTime.WithLabelValues(chart).Observe(took.Seconds())
	if failed {
		t.failures.WithLabelValues(chart).Inc()
	}
}

// Empty counts a chart rendered from zero matching rows
func (t *Telemetry) Empty(chart string) {
	t.empties.WithLabelValues(chart).Inc()
}

// Registry returns the underlying registry
func (t *Telemetry) Registry() *prometheus.Registry {
	return t.registry
}

// Handler serves the registry in the Prometheus exposition format
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{Registry: t.registry})
}
