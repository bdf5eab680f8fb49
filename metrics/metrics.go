// Package metrics provides Prometheus metrics for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "murmur"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Poll cycle metrics
	PollsTotal    prometheus.Counter
	CycleDuration prometheus.Histogram

	// Ingestion metrics
	UtterancesIngested prometheus.Counter
	DuplicatesSkipped  prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec

	// Watermark position in epoch seconds
	Watermark prometheus.Gauge
}

// Default is the global metrics instance registered on the default
// Prometheus registry.
var Default = New(prometheus.DefaultRegisterer)

// New creates all pipeline metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PollsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Total number of poll cycles executed",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of poll cycles in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		UtterancesIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_ingested_total",
			Help:      "Total number of utterances stored",
		}),
		DuplicatesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_skipped_total",
			Help:      "Total number of duplicate utterances skipped",
		}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of pipeline errors by stage",
		}, []string{"stage"}),
		Watermark: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watermark_seconds",
			Help:      "Highest ingested utterance start time in epoch seconds",
		}),
	}
}

// RecordCycle records a completed poll cycle.
func (m *Metrics) RecordCycle(durationSeconds float64) {
	m.PollsTotal.Inc()
	m.CycleDuration.Observe(durationSeconds)
}

// RecordIngested records utterances stored in a cycle.
func (m *Metrics) RecordIngested(count int) {
	m.UtterancesIngested.Add(float64(count))
}

// RecordDuplicates records utterances skipped by deduplication.
func (m *Metrics) RecordDuplicates(count int) {
	m.DuplicatesSkipped.Add(float64(count))
}

// RecordError records a pipeline error at the named stage.
func (m *Metrics) RecordError(stage string) {
	m.ErrorsTotal.WithLabelValues(stage).Inc()
}

// RecordWatermark records the current watermark position.
func (m *Metrics) RecordWatermark(ts float64) {
	m.Watermark.Set(ts)
}
