package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// File processing metrics
var (
	FilesProcessedTotal *prometheus.CounterVec
	FilesRejectedTotal  *prometheus.CounterVec
	FilesFailedTotal    prometheus.Counter
)

func initProcessMetrics() {
	FilesProcessedTotal = NewCounterVec(
		"tidyfs_files_processed_total",
		"Files loaded by the driver, by detected encoding.",
		[]string{"encoding"},
	)

	FilesRejectedTotal = NewCounterVec(
		"tidyfs_files_rejected_total",
		"Files rejected for an unsupported encoding.",
		[]string{"encoding"},
	)

	FilesFailedTotal = NewCounter(
		"tidyfs_files_failed_total",
		"Files that could not be read or decoded.",
	)
}

func registerProcessMetrics() {
	prometheus.MustRegister(FilesProcessedTotal)
	prometheus.MustRegister(FilesRejectedTotal)
	prometheus.MustRegister(FilesFailedTotal)
}

// RecordLoaded counts a file that was read and decoded.
func RecordLoaded(encoding string) {
	Init()
	FilesProcessedTotal.WithLabelValues(encoding).Inc()
}

// RecordRejected counts a file refused for its encoding.
func RecordRejected(encoding string) {
	Init()
	FilesRejectedTotal.WithLabelValues(encoding).Inc()
}

// RecordFailed counts a file that could not be read.
func RecordFailed() {
	Init()
	FilesFailedTotal.Inc()
}

// ProcessCollector adapts the process counters to the driver.
type ProcessCollector struct{}

func NewProcessCollector() ProcessCollector {
	Init()
	return ProcessCollector{}
}

func (ProcessCollector) Loaded(encoding string)   { RecordLoaded(encoding) }
func (ProcessCollector) Rejected(encoding string) { RecordRejected(encoding) }
func (ProcessCollector) Failed()                  { RecordFailed() }
func (ProcessCollector) HistoryError()            { ErrorsTotal.Inc() }
