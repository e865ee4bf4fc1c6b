// Package metrics exposes per-run prometheus collectors. The notifier exits
// after each run, so collectors are exported to a textfile or pushed to a
// Pushgateway instead of being scraped.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "juicewatch"

// Notification outcome labels.
const (
	StatusDelivered     = "delivered"
	StatusEnrichFailed  = "enrich_failed"
	StatusDeliverFailed = "deliver_failed"
)

// Metrics records the outcome of one run. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	eventsFetched  *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	fetchFailures  *prometheus.CounterVec
	watermark      *prometheus.GaugeVec
	runDuration    prometheus.Gauge
	lastRunSuccess prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_fetched_total",
			Help:      "Events returned by the indexing service.",
		}, []string{"stream"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Per-event outcomes.",
		}, []string{"stream", "status"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Streams whose fetch failed.",
		}, []string{"stream"}),
		watermark: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watermark_seconds",
			Help:      "Watermark per stream after the run.",
		}, []string{"stream"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last run persisted its watermarks.",
		}),
	}
	m.registry.MustRegister(
		m.eventsFetched,
		m.notifications,
		m.fetchFailures,
		m.watermark,
		m.runDuration,
		m.lastRunSuccess,
	)
	return m
}

// Registry returns the registry holding the run collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) EventsFetched(stream string, n int) {
	if m == nil {
		return
	}
	m.eventsFetched.WithLabelValues(stream).Add(float64(n))
}

func (m *Metrics) Notification(stream, status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(stream, status).Inc()
}

func (m *Metrics) FetchFailed(stream string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(stream).Inc()
}

func (m *Metrics) Watermark(stream string, ts int64) {
	if m == nil {
		return
	}
	m.watermark.WithLabelValues(stream).Set(float64(ts))
}

func (m *Metrics) RunFinished(d time.Duration, saved bool) {
	if m == nil {
		return
	}
	m.runDuration.Set(d.Seconds())
	if saved {
		m.lastRunSuccess.Set(1)
	} else {
		m.lastRunSuccess.Set(0)
	}
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Push sends the registry to a Pushgateway under the given job name.
func (m *Metrics) Push(url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
