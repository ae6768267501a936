// Package metrics exposes conversion and delivery counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline stages timed by StageDuration.
const (
	StageExtract    = "extract"
	StageSynthesize = "synthesize"
	StageTranscode  = "transcode"
	StageStore      = "store"
)

// Delivery outcomes.
const (
	DeliveryServed   = "served"
	DeliveryNotFound = "not_found"
	DeliveryAborted  = "aborted"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	conversions *prometheus.CounterVec
	stages      *prometheus.HistogramVec
	deliveries  *prometheus.CounterVec
	swept       prometheus.Counter
}

// New creates and registers the collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docspeak_conversions_total",
			Help: "Document conversions by document kind and result code.",
		}, []string{"kind", "code"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docspeak_stage_duration_seconds",
			Help:    "Time spent in each conversion stage.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docspeak_deliveries_total",
			Help: "Audio fetches by outcome.",
		}, []string{"outcome"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docspeak_artifacts_swept_total",
			Help: "Expired files removed from storage.",
		}),
	}

	m.registry.MustRegister(
		m.conversions,
		m.stages,
		m.deliveries,
		m.swept,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Conversion counts a finished conversion. code is "ok" on success.
func (m *Metrics) Conversion(kind, code string) {
	if kind == "" {
		kind = "unknown"
	}
	m.conversions.WithLabelValues(kind, code).Inc()
}

// StageDuration records how long a stage took since start.
func (m *Metrics) StageDuration(stage string, start time.Time) {
	m.stages.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Delivery counts an audio fetch.
func (m *Metrics) Delivery(outcome string) {
	m.deliveries.WithLabelValues(outcome).Inc()
}

// Swept adds n removed files.
func (m *Metrics) Swept(n int) {
	if n > 0 {
		m.swept.Add(float64(n))
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
