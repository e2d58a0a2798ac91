package metrics

import "github.com/prometheus/client_golang/prometheus"

// Budget and enforcement Prometheus metrics.
var (
	EvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kidlock",
			Name:      "evictions_total",
			Help:      "Foreground applications sent home after the budget ran out",
		},
		[]string{"source"}, // "event" / "tick"
	)

	RedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kidlock",
			Name:      "redemptions_total",
			Help:      "Redeem attempts by outcome",
		},
		[]string{"result"}, // "grant" / "admin" / "not_found" / "already_used" / "invalid"
	)

	RolloversTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kidlock",
			Name:      "rollovers_total",
			Help:      "Daily state resets at the day boundary",
		},
	)

	GrantedMinutesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kidlock",
			Name:      "granted_minutes_total",
			Help:      "Minutes added by grants, including debt compensation",
		},
	)

	RemainingMinutes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kidlock",
			Name:      "remaining_minutes",
			Help:      "Remaining allowance at the last evaluation",
		},
	)

	PersistRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kidlock",
			Name:      "persist_retries_total",
			Help:      "Durable write retries after a failed SET",
		},
		[]string{"result"}, // "recovered" / "failed"
	)
)

var budgetMetricsRegistered bool

// RegisterBudgetMetrics registers budget and enforcement metrics. Must be called once from main.
func RegisterBudgetMetrics() {
	if budgetMetricsRegistered {
		return
	}
	prometheus.MustRegister(EvictionsTotal)
	prometheus.MustRegister(RedemptionsTotal)
	prometheus.MustRegister(RolloversTotal)
	prometheus.MustRegister(GrantedMinutesTotal)
	prometheus.MustRegister(RemainingMinutes)
	prometheus.MustRegister(PersistRetriesTotal)
	budgetMetricsRegistered = true
}
