package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for student lookups.
type Metrics struct {
	LookupLatency  *prometheus.HistogramVec
	LookupOutcome  *prometheus.CounterVec
	CandidateCount prometheus.Histogram
	CircuitOpen    prometheus.Gauge
}

// New creates and registers the lookup metrics.
func New() *Metrics {
	return &Metrics{
		LookupLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventreg_student_lookup_duration_seconds",
			Help:    "Duration of student record store lookups by directory",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"directory"}),

		LookupOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eventreg_student_lookups_total",
			Help: "Student lookups by outcome",
		}, []string{"outcome"}), // outcome: "ok", "empty", "degraded", "short_circuit"

		CandidateCount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "eventreg_student_lookup_candidates",
			Help:    "Number of candidates returned per lookup",
			Buckets: []float64{0, 1, 2, 5, 10},
		}),

		CircuitOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "eventreg_student_directory_circuit_open",
			Help: "1 while the student directory circuit breaker is open",
		}),
	}
}

// ObserveLookupLatency records the duration of a directory call.
func (m *Metrics) ObserveLookupLatency(directory string, d time.Duration) {
	if m != nil {
		m.LookupLatency.WithLabelValues(directory).Observe(d.Seconds())
	}
}

// IncrementOutcome records a lookup outcome.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.LookupOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveCandidates records how many candidates a lookup produced.
func (m *Metrics) ObserveCandidates(n int) {
	if m != nil {
		m.CandidateCount.Observe(float64(n))
	}
}

// SetCircuitOpen mirrors the breaker state.
func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitOpen.Set(1)
		return
	}
	m.CircuitOpen.Set(0)
}
