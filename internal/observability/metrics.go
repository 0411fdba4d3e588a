package observability

import "github.com/prometheus/client_golang/prometheus"

// Domain counters. Labels are fixed enumerations so cardinality stays small.
var (
	// NegotiationEvaluations counts counteroffer evaluations by verdict.
	NegotiationEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "negotiation_evaluations_total",
			Help: "Counteroffer evaluations by recommendation.",
		},
		[]string{"recommendation"},
	)

	// BenchmarkLookups counts benchmark lookups by outcome:
	// hit, miss, not_found, unavailable.
	BenchmarkLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benchmark_lookups_total",
			Help: "Benchmark lookups by outcome.",
		},
		[]string{"outcome"},
	)

	// SessionVersionConflicts counts optimistic concurrency failures surfaced
	// to clients or exhausted after retries.
	SessionVersionConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "session_version_conflicts_total",
			Help: "Negotiation session mutations rejected on a stale version.",
		},
	)

	// SessionsExpired counts sessions moved to Expired by the deadline sweep.
	SessionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_expired_total",
			Help: "Negotiation sessions expired by the deadline sweep.",
		},
	)
)

func init() {
	prometheus.MustRegister(NegotiationEvaluations, BenchmarkLookups, SessionVersionConflicts, SessionsExpired)
}
