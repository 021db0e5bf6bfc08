package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelbridge",
			Subsystem: "bridge",
			Name:      "commands_total",
			Help:      "Dispatched commands by name and outcome.",
		},
		[]string{"command", "outcome"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modelbridge",
			Subsystem: "bridge",
			Name:      "command_duration_seconds",
			Help:      "Handler execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command", "outcome"},
	)
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "modelbridge",
			Subsystem: "bridge",
			Name:      "queue_depth",
			Help:      "Pending calls waiting for a host turn.",
		},
	)
	openConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "modelbridge",
			Subsystem: "bridge",
			Name:      "open_connections",
			Help:      "Currently open client connections.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelbridge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modelbridge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			commandsTotal,
			commandDuration,
			queueDepth,
			openConnections,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordCommand(command, outcome string, duration time.Duration) {
	RegisterMetrics()
	commandsTotal.WithLabelValues(command, outcome).Inc()
	commandDuration.WithLabelValues(command, outcome).Observe(duration.Seconds())
}

func SetQueueDepth(depth int) {
	RegisterMetrics()
	queueDepth.Set(float64(depth))
}

func ConnOpened() {
	RegisterMetrics()
	openConnections.Inc()
}

func ConnClosed() {
	RegisterMetrics()
	openConnections.Dec()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
