// Package metrics exposes Prometheus counters for the monitor.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cycle results.
const (
	ResultOK          = "ok"
	ResultEmpty       = "empty"
	ResultFailed      = "failed"
	ResultSkipped     = "skipped"
	ResultInterrupted = "interrupted"
)

// Notification results.
const (
	NotifyDelivered  = "delivered"
	NotifyFailed     = "failed"
	NotifySuppressed = "suppressed"
)

// Collector records monitor activity.
type Collector struct {
	cycles        *prometheus.CounterVec
	fetchFailures *prometheus.CounterVec
	notifications *prometheus.CounterVec
	evaluated     prometheus.Counter
	cycleDuration prometheus.Histogram
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ofac_monitor_cycles_total",
			Help: "Detection cycles by result.",
		}, []string{"result"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ofac_monitor_fetch_failures_total",
			Help: "Listing and detail fetches that degraded to no data, by error kind.",
		}, []string{"kind"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ofac_monitor_notifications_total",
			Help: "Notification attempts by result.",
		}, []string{"result"}),
		evaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ofac_monitor_entries_evaluated_total",
			Help: "New listing entries evaluated for relevance.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ofac_monitor_cycle_duration_seconds",
			Help:    "Duration of detection cycles.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.cycles,
		c.fetchFailures,
		c.notifications,
		c.evaluated,
		c.cycleDuration,
	)
	return c
}

// RecordCycle records a finished cycle.
func (c *Collector) RecordCycle(result string, d time.Duration) {
	c.cycles.WithLabelValues(result).Inc()
	c.cycleDuration.Observe(d.Seconds())
}

// RecordSkipped counts a cycle skipped outside the active window. No
// duration is observed.
func (c *Collector) RecordSkipped() {
	c.cycles.WithLabelValues(ResultSkipped).Inc()
}

// RecordFetchFailure records a fetch that degraded to no data.
func (c *Collector) RecordFetchFailure(kind string) {
	c.fetchFailures.WithLabelValues(kind).Inc()
}

// RecordNotification records a notification attempt or suppression.
func (c *Collector) RecordNotification(result string) {
	c.notifications.WithLabelValues(result).Inc()
}

// RecordEvaluated records an entry evaluated for relevance.
func (c *Collector) RecordEvaluated() {
	c.evaluated.Inc()
}

// Handler serves the /metrics endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}
