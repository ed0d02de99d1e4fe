package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for form sessions and submissions.
type Metrics struct {
	SessionsOpened     prometheus.Counter
	SessionsClosed     prometheus.Counter
	GateRejections     *prometheus.CounterVec
	Submissions        *prometheus.CounterVec
	SubmissionLatency  prometheus.Histogram
	StaleLookups       prometheus.Counter
	SubmittedAmountBRL prometheus.Counter
	SaveConflicts      prometheus.Counter
}

// New creates and registers the registration metrics.
func New() *Metrics {
	return &Metrics{
		SessionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eventreg_sessions_opened_total",
			Help: "Total form sessions opened",
		}),
		SessionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eventreg_sessions_closed_total",
			Help: "Total form sessions closed by the client",
		}),
		GateRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eventreg_submit_gate_rejections_total",
			Help: "Submit attempts blocked before any network call, by reason",
		}, []string{"reason"}),
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eventreg_submissions_total",
			Help: "Workflow submissions by outcome",
		}, []string{"outcome"}), // outcome: "success", "link_missing", "rejected", "timeout", "outage", ...
		SubmissionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "eventreg_submission_duration_seconds",
			Help:    "Duration of workflow submissions",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		StaleLookups: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eventreg_stale_lookups_total",
			Help: "Lookup completions discarded because a newer lookup was issued",
		}),
		SubmittedAmountBRL: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eventreg_submitted_amount_brl_total",
			Help: "Sum of amounts accepted by the workflow, in BRL",
		}),
		SaveConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eventreg_session_save_conflicts_total",
			Help: "Session saves rejected because another instance wrote first",
		}),
	}
}

func (m *Metrics) IncrementSessionsOpened() {
	if m != nil {
		m.SessionsOpened.Inc()
	}
}

func (m *Metrics) IncrementSessionsClosed() {
	if m != nil {
		m.SessionsClosed.Inc()
	}
}

func (m *Metrics) IncrementGateRejection(reason string) {
	if m != nil {
		m.GateRejections.WithLabelValues(reason).Inc()
	}
}

// ObserveSubmission records one workflow call.
func (m *Metrics) ObserveSubmission(outcome string, d time.Duration) {
	if m != nil {
		m.Submissions.WithLabelValues(outcome).Inc()
		m.SubmissionLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementStaleLookups() {
	if m != nil {
		m.StaleLookups.Inc()
	}
}

func (m *Metrics) AddSubmittedAmount(amount float64) {
	if m != nil {
		m.SubmittedAmountBRL.Add(amount)
	}
}

func (m *Metrics) IncrementSaveConflicts() {
	if m != nil {
		m.SaveConflicts.Inc()
	}
}
