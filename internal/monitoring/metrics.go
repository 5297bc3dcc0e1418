package monitoring

import "github.com/prometheus/client_golang/prometheus"

var (
	HttpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	BetsPlaced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "casino_bets_total",
			Help: "Total crash bets accepted",
		},
	)

	Settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casino_settlements_total",
			Help: "Settled crash sessions by outcome",
		},
		[]string{"outcome"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "casino_active_sessions",
			Help: "Crash sessions currently open",
		},
	)

	ReconcileRequired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casino_reconcile_required_total",
			Help: "Settlements the ledger only partly applied, by failing step",
		},
		[]string{"op"},
	)

	WalletBalanceChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_balance_updates_total",
			Help: "Total wallet balance updates",
		},
		[]string{"kind"},
	)
)

// Init registers the collectors with reg, or the default registry when nil.
func Init(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		HttpRequests,
		BetsPlaced,
		Settlements,
		ActiveSessions,
		ReconcileRequired,
		WalletBalanceChanges,
	)
}
