package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the onboarding service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// Poll cycles by result ("ok", "error") and trigger ("scheduled", "forced", "manual")
	PollCycles *prometheus.CounterVec

	// Records classified as new, by roster category
	NewRecords *prometheus.CounterVec

	// Cards pushed to the chat surface by kind ("notification", "digest", "result", "refresh")
	CardsSent *prometheus.CounterVec

	// Provisioning attempts by action and outcome ("ok", "failed")
	Provisioned *prometheus.CounterVec

	ProvisionLatency *prometheus.HistogramVec

	// Callback events by action kind and disposition ("handled", "ignored", "duplicate")
	Callbacks *prometheus.CounterVec
}

// New creates and registers all metrics on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PollCycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_poll_cycles_total",
			Help: "Roster poll cycles by result and trigger",
		}, []string{"result", "trigger"}),

		NewRecords: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_new_records_total",
			Help: "Roster records seen for the first time, by category",
		}, []string{"category"}),

		CardsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_cards_sent_total",
			Help: "Cards pushed to the chat surface by kind",
		}, []string{"kind"}),

		Provisioned: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_provision_attempts_total",
			Help: "Provisioning attempts by action and outcome",
		}, []string{"action", "outcome"}),

		ProvisionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onboard_provision_duration_seconds",
			Help:    "Duration of a single provisioning call including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"action"}),

		Callbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_callbacks_total",
			Help: "Callback events by action kind and disposition",
		}, []string{"kind", "disposition"}),
	}
}

func (m *Metrics) IncrementPoll(result, trigger string) {
	if m != nil {
		m.PollCycles.WithLabelValues(result, trigger).Inc()
	}
}

func (m *Metrics) AddNewRecords(category string, n int) {
	if m != nil && n > 0 {
		m.NewRecords.WithLabelValues(category).Add(float64(n))
	}
}

func (m *Metrics) IncrementCardsSent(kind string) {
	if m != nil {
		m.CardsSent.WithLabelValues(kind).Inc()
	}
}

// ObserveProvision records one provisioning attempt.
func (m *Metrics) ObserveProvision(action string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.Provisioned.WithLabelValues(action, outcome).Inc()
	m.ProvisionLatency.WithLabelValues(action).Observe(d.Seconds())
}

func (m *Metrics) IncrementCallback(kind, disposition string) {
	if m != nil {
		m.Callbacks.WithLabelValues(kind, disposition).Inc()
	}
}
