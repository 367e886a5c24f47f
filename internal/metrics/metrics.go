// Package metrics registers the service's Prometheus collectors and serves
// them next to a health probe.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "propbet"

var (
	ChallengesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "challenges_created_total",
		Help:      "Challenges opened, by tier.",
	}, []string{"tier"})

	BetsPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bets_placed_total",
		Help:      "Picks accepted, by tier.",
	}, []string{"tier"})

	BetsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bets_rejected_total",
		Help:      "Picks rejected before being written, by reason.",
	}, []string{"reason"})

	BetsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bets_resolved_total",
		Help:      "Picks that left pending, by result.",
	}, []string{"result"})

	GainClipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gain_clipped_total",
		Help:      "Profit withheld by the daily gain cap, in account currency.",
	})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "challenge_transitions_total",
		Help:      "Challenge state transitions, by kind and fail reason.",
	}, []string{"kind", "reason"})

	SettleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "settle_duration_seconds",
		Help:      "Time spent in the settlement transaction.",
		Buckets:   prometheus.DefBuckets,
	})

	OddsFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "odds_fetch_total",
		Help:      "Upstream odds fetches, by outcome (ok, rate_limited, error, skipped).",
	}, []string{"outcome"})

	OddsCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "odds_cache_total",
		Help:      "Odds lookups, by cache result (fresh, stale, miss).",
	}, []string{"result"})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sweep_duration_seconds",
		Help:      "Duration of a full progression sweep.",
		Buckets:   prometheus.DefBuckets,
	})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Challenge events handed to the publisher, by type and outcome.",
	}, []string{"type", "outcome"})
)
