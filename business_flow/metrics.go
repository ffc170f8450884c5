package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Submissions partitioned by outcome (created, rejected_inactive, rejected_invalid, not_found)
	leadSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_submissions_total",
			Help: "Total number of lead form submissions by outcome",
		},
		[]string{"outcome"},
	)

	// Referral codes that did not resolve to an active affiliate
	unknownReferralTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lead_unknown_referral_codes_total",
			Help: "Submissions carrying a referral code that matched no active affiliate",
		},
	)

	// Counter updates that failed after the lead was stored
	counterConsistencyWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_counter_consistency_warnings_total",
			Help: "Counter maintenance failures that left derived counters stale",
		},
		[]string{"operation"},
	)

	// Affiliates or assignments whose stored counters differed from a recount
	counterDriftRepairedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_counter_drift_repaired_total",
			Help: "Counters overwritten by a recompute because they had drifted",
		},
		[]string{"target"},
	)

	statsCacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_stats_cache_requests_total",
			Help: "Stats cache lookups partitioned by result",
		},
		[]string{"result"},
	)
)
