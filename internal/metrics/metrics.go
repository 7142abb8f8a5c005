// Package metrics exposes Prometheus counters and histograms for the API,
// the SMS dispatcher and the background workers.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "budgenudge"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	smsMessages      *prometheus.CounterVec
	jobs             *prometheus.CounterVec
	pipelineDuration prometheus.Histogram
	merchantsTagged  prometheus.Counter
	queueDepth       prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers all collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		smsMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sms",
			Name:      "messages_total",
			Help:      "SMS dispatch outcomes by template.",
		}, []string{"template", "outcome"}),
		jobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "processed_total",
			Help:      "Background jobs by type and final status.",
		}, []string{"type", "status"}),
		pipelineDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Per-user processing pipeline duration.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		merchantsTagged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tagging",
			Name:      "merchants_tagged_total",
			Help:      "Merchants tagged by the AI tagger.",
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "queue_depth",
			Help:      "Jobs waiting in the in-memory queue.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// SMS records the outcome of one template dispatch, e.g. "sent" or "duplicate".
func (m *Metrics) SMS(template, outcome string) {
	if m == nil {
		return
	}
	m.smsMessages.WithLabelValues(template, outcome).Inc()
}

// Job records a job reaching a final status.
func (m *Metrics) Job(jobType, status string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(jobType, status).Inc()
}

// ObservePipeline records one pipeline run.
func (m *Metrics) ObservePipeline(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.pipelineDuration.Observe(elapsed.Seconds())
}

// MerchantsTagged adds n to the tagged merchant counter.
func (m *Metrics) MerchantsTagged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.merchantsTagged.Add(float64(n))
}

// SetQueueDepth reports the number of queued jobs.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
