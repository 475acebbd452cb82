// Package metrics holds the Prometheus collectors of the lottery service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lottery"

var (
	LedgerEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_entries_total",
		Help:      "Wallet ledger rows appended, by type.",
	}, []string{"type"})

	BetsPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bets_placed_total",
		Help:      "Bets persisted, by group.",
	}, []string{"group"})

	BetPoints = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bet_points_total",
		Help:      "Points staked, by group.",
	}, []string{"group"})

	BetRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bet_rejections_total",
		Help:      "Wager batches rejected or aborted, by reason code.",
	}, []string{"code"})

	DrawTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "draw_transitions_total",
		Help:      "Draw state transitions applied, by target status.",
	}, []string{"status"})

	PayoutCredits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payout_credits_total",
		Help:      "Winning bets credited.",
	})

	PayoutPoints = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payout_points_total",
		Help:      "Points paid out to winners.",
	})

	PayoutFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payout_failures_total",
		Help:      "Winning bets whose credit failed.",
	})

	SchedulerTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_ticks_total",
		Help:      "Scheduler ticks, by result.",
	}, []string{"result"})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scheduler_tick_duration_seconds",
		Help:      "Wall time of one scheduler tick.",
		Buckets:   prometheus.DefBuckets,
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by route and status.",
	}, []string{"method", "route", "status"})
)
