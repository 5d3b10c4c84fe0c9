// Package metrics exposes driver-call and scenario metrics of a benchmark
// run as Prometheus collectors on a private registry.
package metrics

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vecbench"

// Collector groups the harness metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	registry   *prometheus.Registry
	callTime   *prometheus.HistogramVec
	callErrors *prometheus.CounterVec
	throughput *prometheus.GaugeVec
	results    *prometheus.CounterVec
}

// New creates a Collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		callTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "driver_call_seconds",
			Help:      "Latency of individual driver calls.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 20),
		}, []string{"backend", "call"}),
		callErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "driver_call_errors_total",
			Help:      "Driver calls that returned an error.",
		}, []string{"backend", "call"}),
		throughput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scenario_throughput",
			Help:      "Items per second of the last completed scenario.",
		}, []string{"backend", "operation", "dataset"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenario_results_total",
			Help:      "Scenarios by outcome.",
		}, []string{"backend", "operation", "outcome"}),
	}
	c.registry.MustRegister(c.callTime, c.callErrors, c.throughput, c.results)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveCall records one driver call.
func (c *Collector) ObserveCall(backend, call string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.callTime.WithLabelValues(backend, call).Observe(d.Seconds())
	if err != nil {
		c.callErrors.WithLabelValues(backend, call).Inc()
	}
}

// ObserveScenario records a scenario outcome; throughput is only set on
// success.
func (c *Collector) ObserveScenario(backend, operation, dataset string, throughput float64, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.results.WithLabelValues(backend, operation, "failed").Inc()
		return
	}
	c.results.WithLabelValues(backend, operation, "ok").Inc()
	c.throughput.WithLabelValues(backend, operation, dataset).Set(throughput)
}

// WriteTextfile dumps the registry in text exposition format to path.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return errors.Wrapf(err, "write metrics to %s", path)
	}
	return nil
}
