package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reap metrics
var (
	ReapDuration         prometheus.Histogram
	ReapRunsTotal        *prometheus.CounterVec
	ReapLastRunTimestamp prometheus.Gauge

	FilesRemovedTotal   prometheus.Counter
	DirsRemovedTotal    prometheus.Counter
	BytesFreedTotal     prometheus.Counter
	EntriesSkippedTotal *prometheus.CounterVec
	ReapFailuresTotal   *prometheus.CounterVec

	// ErrorsTotal counts tidyfs's own errors: failed history writes and
	// metrics server failures.
	ErrorsTotal prometheus.Counter
)

func initReapMetrics() {
	ReapDuration = NewDurationHistogram(
		"tidyfs_reap_duration_seconds",
		"Duration of directory reaps in seconds.",
	)

	ReapRunsTotal = NewCounterVec(
		"tidyfs_reap_runs_total",
		"Directory reaps by result (clean, partial, refused).",
		[]string{"result"},
	)

	ReapLastRunTimestamp = NewGauge(
		"tidyfs_reap_last_run_timestamp",
		"Timestamp of the last reap (Unix epoch seconds).",
	)

	FilesRemovedTotal = NewCounter(
		"tidyfs_files_removed_total",
		"Total number of non-directory entries removed.",
	)

	DirsRemovedTotal = NewCounter(
		"tidyfs_dirs_removed_total",
		"Total number of directories removed.",
	)

	BytesFreedTotal = NewCounter(
		"tidyfs_bytes_freed_total",
		"Total bytes of regular files removed.",
	)

	EntriesSkippedTotal = NewCounterVec(
		"tidyfs_entries_skipped_total",
		"Entries left in place by the special-file policy.",
		[]string{"object"},
	)

	ReapFailuresTotal = NewCounterVec(
		"tidyfs_reap_failures_total",
		"Per-entry reap failures by kind.",
		[]string{"kind"},
	)

	ErrorsTotal = NewCounter(
		"tidyfs_errors_total",
		"Total number of internal errors encountered by tidyfs.",
	)
}

func registerReapMetrics() {
	prometheus.MustRegister(ReapDuration)
	prometheus.MustRegister(ReapRunsTotal)
	prometheus.MustRegister(ReapLastRunTimestamp)
	prometheus.MustRegister(FilesRemovedTotal)
	prometheus.MustRegister(DirsRemovedTotal)
	prometheus.MustRegister(BytesFreedTotal)
	prometheus.MustRegister(EntriesSkippedTotal)
	prometheus.MustRegister(ReapFailuresTotal)
	prometheus.MustRegister(ErrorsTotal)
}

// ReapCollector feeds reaper observations into the package collectors.
type ReapCollector struct{}

// NewReapCollector initializes the collectors and returns an adapter the
// reaper can report through.
func NewReapCollector() ReapCollector {
	Init()
	return ReapCollector{}
}

func (ReapCollector) ObserveRemoved(object string, size int64) {
	if object == "directory" {
		DirsRemovedTotal.Inc()
		return
	}
	FilesRemovedTotal.Inc()
	BytesFreedTotal.Add(float64(size))
}

func (ReapCollector) ObserveSkipped(object string) {
	EntriesSkippedTotal.WithLabelValues(object).Inc()
}

func (ReapCollector) ObserveFailure(kind string) {
	ReapFailuresTotal.WithLabelValues(kind).Inc()
}

// ObserveHistoryError counts a history write that failed.
func (ReapCollector) ObserveHistoryError() {
	ErrorsTotal.Inc()
}

func (ReapCollector) ObserveRun(result string, elapsed time.Duration) {
	ReapRunsTotal.WithLabelValues(result).Inc()
	ReapDuration.Observe(elapsed.Seconds())
	ReapLastRunTimestamp.Set(float64(time.Now().Unix()))
}
