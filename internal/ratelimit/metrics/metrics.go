package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts rate limit decisions.
type Metrics struct {
	Decisions        *prometheus.CounterVec
	AllowlistBypass  prometheus.Counter
	StoreUnavailable prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eventreg_ratelimit_decisions_total",
			Help: "Rate limit checks by endpoint class and decision",
		}, []string{"class", "decision"}), // decision: "allowed", "rejected"
		AllowlistBypass: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eventreg_ratelimit_allowlist_bypass_total",
			Help: "Requests that skipped rate limiting because the client IP is allowlisted",
		}),
		StoreUnavailable: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eventreg_ratelimit_store_errors_total",
			Help: "Rate limit checks that failed open because the bucket store errored",
		}),
	}
}

func (m *Metrics) RecordDecision(class string, allowed bool) {
	if m == nil {
		return
	}
	decision := "rejected"
	if allowed {
		decision = "allowed"
	}
	m.Decisions.WithLabelValues(class, decision).Inc()
}

func (m *Metrics) RecordAllowlistBypass() {
	if m != nil {
		m.AllowlistBypass.Inc()
	}
}

func (m *Metrics) RecordStoreError() {
	if m != nil {
		m.StoreUnavailable.Inc()
	}
}
