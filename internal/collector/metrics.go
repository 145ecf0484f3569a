// internal/collector/metrics.go
package collector

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collector's Prometheus instruments on a private registry
type Metrics struct {
	registry       *prometheus.Registry
	batches        *prometheus.CounterVec
	events         *prometheus.CounterVec
	parserErrors   *prometheus.CounterVec
	requests       *prometheus.CounterVec
	reportDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the collector metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blescope",
			Name:      "ingest_batches_total",
			Help:      "Event batches accepted from agents.",
		}, []string{"source"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blescope",
			Name:      "ingest_events_total",
			Help:      "Events stored from agent batches.",
		}, []string{"source"}),
		parserErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blescope",
			Name:      "parser_errors_total",
			Help:      "Undecodable log lines reported by agents.",
		}, []string{"source"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blescope",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		reportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "blescope",
			Name:      "report_duration_seconds",
			Help:      "Time spent building reports.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.batches,
		m.events,
		m.parserErrors,
		m.requests,
		m.reportDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) observeBatch(source string, events int, parserErrors int64) {
	m.batches.WithLabelValues(source).Inc()
	m.events.WithLabelValues(source).Add(float64(events))
	m.parserErrors.WithLabelValues(source).Add(float64(parserErrors))
}

func (m *Metrics) observeRequest(route string, code int) {
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (m *Metrics) observeReport(kind string, start time.Time) {
	m.reportDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
