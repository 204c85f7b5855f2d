package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the checkpoint engine.
type Metrics struct {
	// Entry decisions by category and outcome
	EntryDecisions *prometheus.CounterVec

	// Exits by badge outcome
	Exits *prometheus.CounterVec

	// Alerts raised by kind
	AlertsRaised *prometheus.CounterVec

	// Refused operations by module and action
	PermissionDenied *prometheus.CounterVec

	// Entry validation latency including lookups
	DecisionLatency prometheus.Histogram
}

// New registers the checkpoint metrics on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		EntryDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkpoint_entry_decisions_total",
			Help: "Total entry decisions by category and outcome",
		}, []string{"category", "outcome"}), // outcome: "accepted", "rejected", "blocked", "invalid"

		Exits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkpoint_exits_total",
			Help: "Total exits by badge outcome",
		}, []string{"badge"}), // badge: "returned", "mismatch", "not_returned", "none"

		AlertsRaised: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkpoint_alerts_raised_total",
			Help: "Total badge alerts raised by kind",
		}, []string{"kind"}),

		PermissionDenied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "checkpoint_permission_denied_total",
			Help: "Total operations refused by the session authority",
		}, []string{"module", "action"}),

		DecisionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkpoint_entry_decision_duration_seconds",
			Help:    "Duration of entry validation including blacklist and company lookups",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementDecision records an entry decision.
func (m *Metrics) IncrementDecision(category, outcome string) {
	if m != nil {
		m.EntryDecisions.WithLabelValues(category, outcome).Inc()
	}
}

func (m *Metrics) IncrementExit(badge string) {
	if m != nil {
		m.Exits.WithLabelValues(badge).Inc()
	}
}

func (m *Metrics) IncrementAlert(kind string) {
	if m != nil {
		m.AlertsRaised.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncrementPermissionDenied(module, action string) {
	if m != nil {
		m.PermissionDenied.WithLabelValues(module, action).Inc()
	}
}

// ObserveDecisionLatency records the time spent deciding one entry.
func (m *Metrics) ObserveDecisionLatency(d time.Duration) {
	if m != nil {
		m.DecisionLatency.Observe(d.Seconds())
	}
}
