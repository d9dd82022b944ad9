// Package metrics exposes Prometheus collectors for the progress pipeline and
// the status server.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	progressEventsTotal        *prometheus.CounterVec
	progressIgnoredTotal       prometheus.Counter
	progressFramesTotal        prometheus.Counter
	progressRenderSeconds      prometheus.Histogram
	progressWindowEvents       prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		progressEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pace_events_applied_total",
				Help: "Total stage events applied by the progress consumer, labeled by kind.",
			},
			[]string{"kind"},
		)

		progressIgnoredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pace_events_ignored_total",
				Help: "Total stage events ignored because they named an unknown stage.",
			},
		)

		progressFramesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pace_frames_rendered_total",
				Help: "Total progress frames rendered.",
			},
		)

		progressRenderSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pace_render_duration_seconds",
				Help:    "Histogram of time spent rendering one frame across all renderers.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
		)

		progressWindowEvents = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pace_window_events",
				Help:    "Histogram of events coalesced into one render window.",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveEvent counts one applied event of the given kind.
func ObserveEvent(kind string) {
	progressEventsTotal.WithLabelValues(kind).Inc()
}

// ObserveIgnored counts one event dropped for an unknown stage.
func ObserveIgnored() {
	progressIgnoredTotal.Inc()
}

// ObserveFrame records one rendered frame and how long it took.
func ObserveFrame(duration time.Duration) {
	progressFramesTotal.Inc()
	progressRenderSeconds.Observe(duration.Seconds())
}

// ObserveWindow records how many events one coalescing window applied.
func ObserveWindow(events int) {
	progressWindowEvents.Observe(float64(events))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
