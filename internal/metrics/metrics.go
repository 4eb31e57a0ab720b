// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "histosaga"

var (
	// AnswersGraded counts graded answers.
	// Labels: kind (question variant), result (correct, incorrect)
	AnswersGraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "answers_graded_total",
			Help:      "Total number of graded answers by question kind and result",
		},
		[]string{"kind", "result"},
	)

	// SessionsOpened counts activity sessions started.
	// Labels: source (remote, cache)
	SessionsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "opened_total",
			Help:      "Total number of activity sessions opened by definition source",
		},
		[]string{"source"},
	)

	// SessionsActive is the number of sessions currently held in memory.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of activity sessions in progress",
		},
	)

	// Submissions counts finished sessions.
	// Labels: result (remote, offline, failed)
	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "submissions_total",
			Help:      "Total number of session submissions by result",
		},
		[]string{"result"},
	)

	// ActivityLoads counts activity definition loads.
	// Labels: source (remote, cache, miss)
	ActivityLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "activity",
			Name:      "loads_total",
			Help:      "Total number of activity loads by source",
		},
		[]string{"source"},
	)

	// ReconcileEntries counts offline entries processed by reconciliation.
	// Labels: result (synced, failed)
	ReconcileEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "reconcile_entries_total",
			Help:      "Total number of offline entries processed by result",
		},
		[]string{"result"},
	)

	// OfflinePending is the queue length seen by the last reconciliation.
	OfflinePending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "pending_entries",
			Help:      "Offline progress entries pending at the last reconciliation",
		},
	)

	// RemoteOnline is 1 while the remote store is reachable.
	RemoteOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connectivity",
			Name:      "remote_online",
			Help:      "Remote store reachability (1=online, 0=offline)",
		},
	)
)

// Result maps a boolean outcome onto the correct/incorrect label pair.
func Result(ok bool) string {
	if ok {
		return "correct"
	}
	return "incorrect"
}
