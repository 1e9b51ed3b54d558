package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SettlementTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settleup_settlement_transitions_total",
		Help: "Settlement status transitions by resulting status",
	}, []string{"status"})

	SettlementConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settleup_settlement_conflicts_total",
		Help: "Conditional settlement writes that lost a race, by operation",
	}, []string{"operation"})

	TxFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settleup_db_tx_fallback_total",
		Help: "Units of work executed without a surrounding transaction",
	})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settleup_notifications_total",
		Help: "Notification publish attempts by result",
	}, []string{"result"})
)

func RecordTransition(status string) {
	SettlementTransitions.WithLabelValues(status).Inc()
}

func RecordConflict(operation string) {
	SettlementConflicts.WithLabelValues(operation).Inc()
}
