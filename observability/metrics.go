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
			Namespace: "petpals",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"service", "method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "petpals",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "route", "status"},
	)
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "petpals",
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Authenticated WebSocket connections.",
		},
	)
	wsFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "petpals",
			Subsystem: "ws",
			Name:      "frames_total",
			Help:      "WebSocket frames by direction and type.",
		},
		[]string{"direction", "type"},
	)
	deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "petpals",
			Subsystem: "noti",
			Name:      "deliveries_total",
			Help:      "Notification deliveries by channel and outcome.",
		},
		[]string{"channel", "outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, wsConnections, wsFrames, deliveries)
	})
}

func RecordHTTPRequest(service, method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, route, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, route, statusLabel).Observe(duration.Seconds())
}

func SetWSConnections(n int) {
	RegisterMetrics()
	wsConnections.Set(float64(n))
}

func RecordWSFrame(direction, frameType string) {
	RegisterMetrics()
	wsFrames.WithLabelValues(direction, frameType).Inc()
}

func RecordDelivery(channel, outcome string) {
	RegisterMetrics()
	deliveries.WithLabelValues(channel, outcome).Inc()
}
