package storage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	// Register the metrics.
	prometheus.MustRegister(
		PromSummariesCount,
		PromOperationDurationMilliseconds,
	)
}

var (
	// PromSummariesCount is a gauge used to hold the current total amount
	// of summaries held by a storage.
	PromSummariesCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bdecode_storage_summaries_count",
		Help: "The number of torrent summaries stored",
	}, []string{"driver"})

	// PromOperationDurationMilliseconds is a histogram used by the storage
	// drivers to record the time each operation takes.
	PromOperationDurationMilliseconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bdecode_storage_operation_duration_milliseconds",
		Help:    "The time it takes to perform a storage operation",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
	}, []string{"driver", "operation"})
)

// RecordOperation records how long an operation of the named driver took,
// measured from start.
func RecordOperation(driver, operation string, start time.Time) {
	PromOperationDurationMilliseconds.
		WithLabelValues(driver, operation).
		Observe(float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond))
}
