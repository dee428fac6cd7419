package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "direct_chat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "direct_chat",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	PushConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "direct_chat",
			Subsystem: "push",
			Name:      "connections",
			Help:      "Live push connections.",
		},
	)

	PushEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "direct_chat",
			Subsystem: "push",
			Name:      "events_total",
			Help:      "Push events by outcome (queued, dropped, skipped_closed).",
		},
		[]string{"outcome"},
	)

	MessagesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "direct_chat",
			Subsystem: "store",
			Name:      "messages_created_total",
			Help:      "Messages persisted through the REST surface.",
		},
	)
)

func init() {
	Registry.MustRegister(
		HTTPRequests,
		HTTPDuration,
		PushConnections,
		PushEvents,
		MessagesCreated,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
