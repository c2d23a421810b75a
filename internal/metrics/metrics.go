package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Telemetry only. Authoritative counts are always derived from the ledger.
var (
	EntriesCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifelink_entries_created_total",
		Help: "Total number of resource entries created.",
	},
		[]string{"category", "kind"},
	)

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifelink_transitions_total",
		Help: "Total number of workflow status transitions applied.",
	},
		[]string{"category", "target"},
	)

	ApproveConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifelink_approve_conflicts_total",
		Help: "Total number of approvals rejected because another hospital won the claim.",
	})

	EntriesExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifelink_entries_expired_total",
		Help: "Total number of pending entries moved to expired by the sweeper.",
	})
)
