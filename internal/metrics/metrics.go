// Package metrics exposes Prometheus collectors for the HTTP server and the
// entry services.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	entryUpsertsTotal   *prometheus.CounterVec
	importLinesTotal    *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weighttrack_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "weighttrack_http_request_duration_seconds",
				Help:    "Time taken for HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		entryUpsertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weighttrack_entry_upserts_total",
				Help: "Weight entry writes by outcome",
			},
			[]string{"outcome"}, // created, updated
		),
		importLinesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weighttrack_import_lines_total",
				Help: "CSV import data lines by result",
			},
			[]string{"result"}, // imported, skipped
		),
	}

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.entryUpsertsTotal,
		m.importLinesTotal,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// ObserveRequest records one finished HTTP request. route is the matched
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordUpsert counts one entry write.
func (m *Metrics) RecordUpsert(created bool) {
	if m == nil {
		return
	}
	outcome := "updated"
	if created {
		outcome = "created"
	}
	m.entryUpsertsTotal.WithLabelValues(outcome).Inc()
}

// RecordImport counts the lines of one finished import.
func (m *Metrics) RecordImport(imported, skipped int) {
	if m == nil {
		return
	}
	m.importLinesTotal.WithLabelValues("imported").Add(float64(imported))
	m.importLinesTotal.WithLabelValues("skipped").Add(float64(skipped))
}
