// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BetsPlaced counts committed stake reservations.
	BetsPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_bets_placed_total",
		Help: "Bet groups placed",
	})

	// BetsSettled counts committed leg settlements by group outcome.
	BetsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betledger_bets_settled_total",
		Help: "Bet legs settled, labeled by resulting group status",
	}, []string{"group_status"})

	// PaymentsConfirmed counts gateway confirmations by gateway and status.
	PaymentsConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betledger_payments_confirmed_total",
		Help: "Gateway confirmations processed",
	}, []string{"gateway", "status"})

	// DuplicateConfirmations counts webhook deliveries suppressed by the
	// idempotency guards.
	DuplicateConfirmations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_duplicate_confirmations_total",
		Help: "Duplicate gateway confirmations suppressed",
	})

	// PaymentsExpired counts pending payments failed by the sweep.
	PaymentsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_payments_expired_total",
		Help: "Pending payments expired by the reconciliation sweep",
	})

	// InsufficientFunds counts reservations rejected for lack of balance.
	InsufficientFunds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betledger_insufficient_funds_total",
		Help: "Stake reservations rejected for insufficient balance",
	})
)
