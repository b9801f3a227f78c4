package registration

import "github.com/prometheus/client_golang/prometheus"

const (
	effectReferralCredit = "referral_credit"
	effectNotification   = "notification"
)

type Metrics struct {
	submissions       *prometheus.CounterVec
	sideEffectFailure *prometheus.CounterVec
	referralsCredited prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registration_submissions_total",
				Help: "Registration submissions by outcome.",
			},
			[]string{"outcome"},
		),
		sideEffectFailure: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registration_side_effect_failures_total",
				Help: "Post-registration side effects that failed without failing the submission.",
			},
			[]string{"effect"},
		),
		referralsCredited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "referral_credits_total",
				Help: "Referral counts successfully incremented.",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.submissions, m.sideEffectFailure, m.referralsCredited)
	}

	return m
}

func (m *Metrics) observeSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeSideEffectFailure(effect string) {
	if m == nil {
		return
	}
	m.sideEffectFailure.WithLabelValues(effect).Inc()
}

func (m *Metrics) observeReferralCredited() {
	if m == nil {
		return
	}
	m.referralsCredited.Inc()
}
