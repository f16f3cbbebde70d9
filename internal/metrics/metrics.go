// Package metrics exposes Prometheus counters for replication activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	mergeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "accord_merge_total",
		Help: "Merges performed, labelled by outcome.",
	}, []string{"outcome"})

	conflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "accord_conflicts_total",
		Help: "Field conflicts surfaced by concurrent merges.",
	})

	applyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "accord_apply_total",
		Help: "Applied updates, labelled by kind (local or remote).",
	}, []string{"kind"})

	restoreTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "accord_restore_total",
		Help: "Successful time-travel restores.",
	})

	historyPrunedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "accord_history_pruned_total",
		Help: "History entries deleted by retention pruning.",
	})
)

// MustRegister registers all collectors with the given registry. Call once
// at startup; duplicate registration panics, as with any Prometheus
// collector.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(mergeTotal, conflictsTotal, applyTotal, restoreTotal, historyPrunedTotal)
}

// ObserveMerge records one merge and how it resolved. Outcome is one of
// "local", "remote", "equal" or "concurrent".
func ObserveMerge(outcome string, conflicts int) {
	mergeTotal.WithLabelValues(outcome).Inc()
	if conflicts > 0 {
		conflictsTotal.Add(float64(conflicts))
	}
}

// ObserveApply records one applied update.
func ObserveApply(kind string) {
	applyTotal.WithLabelValues(kind).Inc()
}

// ObserveRestore records one successful restore.
func ObserveRestore() {
	restoreTotal.Inc()
}

// ObservePruned records history entries removed by retention.
func ObservePruned(deleted int64) {
	if deleted > 0 {
		historyPrunedTotal.Add(float64(deleted))
	}
}
