package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the engine collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	EventsTotal         *prometheus.CounterVec
	PointsAwarded       prometheus.Counter
	RedemptionsTotal    *prometheus.CounterVec
	QuestCompletions    prometheus.Counter
	ReconcileUpdated    prometheus.Counter
	ReconcileFailed     prometheus.Counter
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// Event outcomes
const (
	OutcomeRecorded    = "recorded"
	OutcomeDuplicate   = "duplicate"
	OutcomeRateLimited = "rate_limited"
	OutcomeInvalid     = "invalid"
	OutcomeFailed      = "failed"
)

// New builds the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamification_events_total",
				Help: "Gamification events by type and pipeline outcome",
			},
			[]string{"type", "outcome"},
		),
		PointsAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gamification_points_awarded_total",
			Help: "Points credited through the event pipeline",
		}),
		RedemptionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reward_redemptions_total",
				Help: "Reward redemption attempts by outcome",
			},
			[]string{"outcome"},
		),
		QuestCompletions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quest_completions_total",
			Help: "Quests completed for the first time",
		}),
		ReconcileUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hackathon_reconcile_updated_total",
			Help: "Hackathon phase rows rewritten by the reconcile sweep",
		}),
		ReconcileFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hackathon_reconcile_failed_total",
			Help: "Hackathon phase rows the reconcile sweep failed to write",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
	}

	reg.MustRegister(
		m.EventsTotal,
		m.PointsAwarded,
		m.RedemptionsTotal,
		m.QuestCompletions,
		m.ReconcileUpdated,
		m.ReconcileFailed,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

func (m *Metrics) Event(eventType, outcome string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) Points(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.PointsAwarded.Add(float64(n))
}

func (m *Metrics) Redemption(outcome string) {
	if m == nil {
		return
	}
	m.RedemptionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) QuestCompleted() {
	if m == nil {
		return
	}
	m.QuestCompletions.Inc()
}

func (m *Metrics) Reconciled(updated, failed int) {
	if m == nil {
		return
	}
	m.ReconcileUpdated.Add(float64(updated))
	m.ReconcileFailed.Add(float64(failed))
}

func (m *Metrics) HTTPRequest(path, method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(path, method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(path, method).Observe(seconds)
}
