package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coedit"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	SnapshotCommits = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "snapshot_commits_total", Help: "Snapshot commits by result."},
		[]string{"result"},
	)
	Rollbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rollbacks_total", Help: "Rollbacks by result."},
		[]string{"result"},
	)
	BestEffortFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "best_effort_failures_total", Help: "Failed best-effort side effects by operation."},
		[]string{"operation"},
	)
	OrphanedBlobs = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "orphaned_blobs_total", Help: "Snapshot blobs written without a metadata record."},
	)
	LiveBroadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "live_broadcasts_total", Help: "Live content updates fanned out to editors by origin."},
		[]string{"origin"},
	)
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(SnapshotCommits)
	reg.MustRegister(Rollbacks)
	reg.MustRegister(BestEffortFailures)
	reg.MustRegister(OrphanedBlobs)
	reg.MustRegister(LiveBroadcasts)
}
