package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	donationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodbank_donation_transitions_total",
		Help: "Donation requests created and moved between states",
	}, []string{"transition"})

	reservationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodbank_reservations_total",
		Help: "Reservation attempts by outcome",
	}, []string{"outcome"})

	bagsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodbank_bags_total",
		Help: "Bags credited to or reserved from the ledger",
	}, []string{"direction"})

	txConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodbank_tx_conflicts_total",
		Help: "Store transactions that hit a transient conflict",
	}, []string{"operation"})

	opLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bloodbank_operation_duration_seconds",
		Help:    "Coordinator operation latency, retries included",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"operation"})
)
