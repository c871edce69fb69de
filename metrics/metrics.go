// Copyright 2019, Square, Inc.

// Package metrics provides prometheus metrics for the job cache. A Collector
// owns its registry so that several can exist in one process (tests, or one
// per server). All Record methods are safe to call on a nil *Collector.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/square/jobcache/proto"
)

const namespace = "jobcache"

type Collector struct {
	returns       *prometheus.CounterVec
	loads         prometheus.Counter
	swept         *prometheus.CounterVec
	sweeps        prometheus.Counter
	sweepDuration prometheus.Histogram
	queueItems    *prometheus.CounterVec
	activeJobs    prometheus.Gauge

	registry *prometheus.Registry
}

func NewCollector() *Collector {
	c := &Collector{
		returns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "returns_total",
			Help:      "Minion returns received, by outcome.",
		}, []string{"outcome"}),
		loads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_saved_total",
			Help:      "Job loads saved.",
		}),
		swept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_swept_total",
			Help:      "Job directories removed by the sweeper, by reason.",
		}, []string{"reason"}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Sweeper runs.",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Time taken by one sweeper run.",
			Buckets:   prometheus.DefBuckets,
		}),
		queueItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_items_total",
			Help:      "Queue items by queue and operation (insert, conflict, delete, pop).",
		}, []string{"queue", "op"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "Jobs reported running by minions at the last active query.",
		}),
		registry: prometheus.NewRegistry(),
	}
	c.registry.MustRegister(
		c.returns,
		c.loads,
		c.swept,
		c.sweeps,
		c.sweepDuration,
		c.queueItems,
		c.activeJobs,
	)
	return c
}

// Registry returns the registry all metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an http.Handler that serves the metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordReturn(outcome byte) {
	if c == nil {
		return
	}
	c.returns.WithLabelValues(proto.ReturnName[outcome]).Inc()
}

func (c *Collector) RecordLoad() {
	if c == nil {
		return
	}
	c.loads.Inc()
}

// RecordSwept counts n removed jobs. Reason is "corrupt" or "expired".
func (c *Collector) RecordSwept(reason string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.swept.WithLabelValues(reason).Add(float64(n))
}

func (c *Collector) RecordSweep(d time.Duration) {
	if c == nil {
		return
	}
	c.sweeps.Inc()
	c.sweepDuration.Observe(d.Seconds())
}

func (c *Collector) RecordQueue(queue, op string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.queueItems.WithLabelValues(queue, op).Add(float64(n))
}

func (c *Collector) SetActiveJobs(n int) {
	if c == nil {
		return
	}
	c.activeJobs.Set(float64(n))
}
