package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "markerctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "markerctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	markerSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "markerctl",
			Subsystem: "marker",
			Name:      "submissions_total",
			Help:      "Marker submissions by acceptance outcome.",
		},
		[]string{"stream", "accepted"},
	)
	markerPushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "markerctl",
			Subsystem: "marker",
			Name:      "pushes_total",
			Help:      "Marker pushes by terminal outcome.",
		},
		[]string{"stream", "outcome"},
	)
	statusReports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "markerctl",
			Subsystem: "marker",
			Name:      "status_reports_total",
			Help:      "Status reports delivered to listeners.",
		},
		[]string{"stream"},
	)
	streamReady = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "markerctl",
			Subsystem: "lsl",
			Name:      "stream_ready",
			Help:      "1 while the sending outlet exists and is usable.",
		},
		[]string{"stream"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			markerSubmissions,
			markerPushes,
			statusReports,
			streamReady,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordMarkerSubmission(stream string, accepted bool) {
	RegisterMetrics()
	markerSubmissions.WithLabelValues(stream, strconv.FormatBool(accepted)).Inc()
}

func RecordMarkerPush(stream string, outcome string) {
	RegisterMetrics()
	markerPushes.WithLabelValues(stream, outcome).Inc()
}

func RecordStatusReport(stream string) {
	RegisterMetrics()
	statusReports.WithLabelValues(stream).Inc()
}

func SetStreamReady(stream string, ready bool) {
	RegisterMetrics()
	v := 0.0
	if ready {
		v = 1.0
	}
	streamReady.WithLabelValues(stream).Set(v)
}
