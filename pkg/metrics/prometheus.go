// Package metrics counts what a fetch run did, using Prometheus collectors
// on a private registry that can be dumped to a node-exporter textfile.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the run's collectors
type Recorder struct {
	registry    *prometheus.Registry
	identifiers *prometheus.CounterVec
	failures    *prometheus.CounterVec
	rows        *prometheus.CounterVec
	truncated   *prometheus.CounterVec
	remaining   *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

// New creates a recorder with its own registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		identifiers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyagg_identifiers_total",
				Help: "Identifiers handled, by category and outcome",
			},
			[]string{"category", "outcome"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyagg_failures_total",
				Help: "Failed identifiers, by category and error type",
			},
			[]string{"category", "type"},
		),
		rows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyagg_rows_appended_total",
				Help: "Observation rows appended to output files",
			},
			[]string{"category"},
		),
		truncated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polyagg_truncated_total",
				Help: "Aggregate results that hit the request limit",
			},
			[]string{"category"},
		),
		remaining: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "polyagg_remaining_identifiers",
				Help: "Identifiers left to fetch at the start of the run",
			},
			[]string{"category"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "polyagg_fetch_duration_seconds",
				Help:    "Duration of one identifier fetch in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"category"},
		),
	}
}

// RecordOutcome counts one handled identifier
func (r *Recorder) RecordOutcome(category, outcome string) {
	r.identifiers.WithLabelValues(category, outcome).Inc()
}

// RecordFailure counts one failure by its error type
func (r *Recorder) RecordFailure(category, errorType string) {
	r.failures.WithLabelValues(category, errorType).Inc()
}

func (r *Recorder) RecordRows(category string, n int) {
	r.rows.WithLabelValues(category).Add(float64(n))
}

func (r *Recorder) RecordTruncated(category string) {
	r.truncated.WithLabelValues(category).Inc()
}

func (r *Recorder) SetRemaining(category string, n int) {
	r.remaining.WithLabelValues(category).Set(float64(n))
}

// RecordLatency records fetch latency in seconds
func (r *Recorder) RecordLatency(category string, seconds float64) {
	r.latency.WithLabelValues(category).Observe(seconds)
}

// Registry exposes the private registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes every collector in the text exposition format
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
