package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the HTTP-level Prometheus metrics shared by every handler.
type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
	Requests        *prometheus.CounterVec
	Panics          prometheus.Counter
}

// New creates and registers the HTTP metrics.
func New() *Metrics {
	return &Metrics{
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventreg_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route pattern",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"route"}),
		Requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eventreg_http_requests_total",
			Help: "Total HTTP requests by route pattern and status code",
		}, []string{"route", "status"}),
		Panics: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eventreg_http_panics_total",
			Help: "Total handler panics recovered by middleware",
		}),
	}
}

// ObserveEndpointLatency records the duration of a request for a route.
func (m *Metrics) ObserveEndpointLatency(route string, d time.Duration) {
	if m != nil {
		m.EndpointLatency.WithLabelValues(route).Observe(d.Seconds())
	}
}

// IncrementRequests counts a completed request.
func (m *Metrics) IncrementRequests(route, status string) {
	if m != nil {
		m.Requests.WithLabelValues(route, status).Inc()
	}
}

// IncrementPanics counts a recovered panic.
func (m *Metrics) IncrementPanics() {
	if m != nil {
		m.Panics.Inc()
	}
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
