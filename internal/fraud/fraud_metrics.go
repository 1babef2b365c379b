package fraud

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ChecksTotal counts fraud checks by verdict outcome.
	ChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verdict",
			Name:      "fraud_checks_total",
			Help:      "Total fraud checks by outcome (clear, verify, blocked, blocked_fraud, rejected).",
		},
		[]string{"outcome"},
	)

	// RuleHitsTotal counts triggered rules by name.
	RuleHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verdict",
			Name:      "fraud_rule_hits_total",
			Help:      "Total rule hits by rule name.",
		},
		[]string{"rule"},
	)

	// RiskScore observes the distribution of capped risk scores.
	RiskScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "verdict",
			Name:      "fraud_risk_score",
			Help:      "Risk score of evaluated transactions.",
			Buckets:   []float64{0, 20, 30, 50, 70, 80, 100},
		},
	)

	// SideEffectFailuresTotal counts best-effort audit/publish failures.
	SideEffectFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verdict",
			Name:      "fraud_side_effect_failures_total",
			Help:      "Failed audit writes and event publishes after a verdict.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		ChecksTotal,
		RuleHitsTotal,
		RiskScore,
		SideEffectFailuresTotal,
	)
}

func observeVerdict(res Result, triggered []string) {
	ChecksTotal.WithLabelValues(res.Outcome()).Inc()
	for _, name := range triggered {
		RuleHitsTotal.WithLabelValues(name).Inc()
	}
	RiskScore.Observe(float64(res.RiskScore))
}
