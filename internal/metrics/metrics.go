package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BusMetrics tracks handled message-bus requests per pattern.
type BusMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewBusMetrics registers and returns the bus request metrics.
func NewBusMetrics(service string) *BusMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopmesh",
		Subsystem: service,
		Name:      "bus_requests_total",
		Help:      "Total number of handled bus requests.",
	}, []string{"pattern", "outcome"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shopmesh",
		Subsystem: service,
		Name:      "bus_request_duration_seconds",
		Help:      "Bus request handling latency in seconds.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"pattern"})

	prometheus.MustRegister(requests, duration)

	return &BusMetrics{Requests: requests, Duration: duration}
}

// Observe records one handled request.
func (m *BusMetrics) Observe(pattern, outcome string, elapsed time.Duration) {
	m.Requests.WithLabelValues(pattern, outcome).Inc()
	m.Duration.WithLabelValues(pattern).Observe(elapsed.Seconds())
}

// Handler exposes the registered metrics in Prometheus format.
func Handler() http.Handler {
	return promhttp.Handler()
}
