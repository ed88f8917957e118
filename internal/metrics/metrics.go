package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry              *prometheus.Registry
	httpRequests          *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	datasetLoads          *prometheus.CounterVec
	liveEvents            *prometheus.CounterVec
	markerRebuildsTotal   prometheus.Counter
	markerRebuildDuration prometheus.Histogram
}

// New creates a fresh Metrics registry with HTTP, dataset and live-update
// metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ipnet",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by site-go",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ipnet",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by site-go",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	datasetLoads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ipnet",
		Name:      "dataset_loads_total",
		Help:      "Dataset load attempts by source and outcome",
	}, []string{"source", "outcome"})

	liveEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ipnet",
		Name:      "live_events_total",
		Help:      "Live update events by entity, kind and outcome",
	}, []string{"entity", "kind", "outcome"})

	markerRebuildsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ipnet",
		Name:      "marker_rebuilds_total",
		Help:      "Total number of full map marker set rebuilds",
	})

	markerRebuildDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ipnet",
		Name:      "marker_rebuild_duration_seconds",
		Help:      "Duration of full map marker set rebuilds",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		datasetLoads,
		liveEvents,
		markerRebuildsTotal,
		markerRebuildDuration,
	)

	return &Metrics{
		registry:              registry,
		httpRequests:          httpRequests,
		httpRequestDuration:   httpRequestDuration,
		datasetLoads:          datasetLoads,
		liveEvents:            liveEvents,
		markerRebuildsTotal:   markerRebuildsTotal,
		markerRebuildDuration: markerRebuildDuration,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// IncDatasetLoad counts a dataset load attempt.
func (m *Metrics) IncDatasetLoad(source, outcome string) {
	if m == nil {
		return
	}
	m.datasetLoads.With(prometheus.Labels{"source": source, "outcome": outcome}).Inc()
}

// IncLiveEvent counts one processed (or dropped) live-update event.
func (m *Metrics) IncLiveEvent(entity, kind, outcome string) {
	if m == nil {
		return
	}
	m.liveEvents.With(prometheus.Labels{"entity": entity, "kind": kind, "outcome": outcome}).Inc()
}

// ObserveMarkerRebuild records one full marker reconciliation pass.
func (m *Metrics) ObserveMarkerRebuild(duration time.Duration) {
	if m == nil {
		return
	}
	m.markerRebuildsTotal.Inc()
	m.markerRebuildDuration.Observe(duration.Seconds())
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
