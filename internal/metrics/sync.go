package metrics

import "github.com/prometheus/client_golang/prometheus"

// Sync job Prometheus metrics.
var (
	SyncBooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "libraryai",
			Name:      "sync_books_total",
			Help:      "Books processed by the sync job",
		},
		[]string{"status"}, // "synced" / "skipped" / "purged"
	)

	SyncCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "libraryai",
			Name:      "sync_cycles_total",
			Help:      "Completed sync cycles",
		},
		[]string{"status"}, // "ok" / "error"
	)

	SyncCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "libraryai",
			Name:      "sync_cycle_duration_seconds",
			Help:      "Sync cycle duration in seconds",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600},
		},
	)
)

var syncMetricsRegistered bool

// RegisterSyncMetrics registers sync job metrics. Must be called once from main.
func RegisterSyncMetrics() {
	if syncMetricsRegistered {
		return
	}
	prometheus.MustRegister(SyncBooksTotal)
	prometheus.MustRegister(SyncCyclesTotal)
	prometheus.MustRegister(SyncCycleDuration)
	syncMetricsRegistered = true
}
