// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout the pipeline.
const (
	// Run metrics.
	MetricRuns        = "readsweep_runs_total"
	MetricRunFailures = "readsweep_run_failures_total"
	MetricRunSeconds  = "readsweep_run_duration_seconds"

	// Read metrics, taken from the parsed classifier summary.
	MetricReadsTotal        = "readsweep_reads_total"
	MetricReadsClassified   = "readsweep_reads_classified_total"
	MetricReadsUnclassified = "readsweep_reads_unclassified_total"

	// MetricLastRunReads is a gauge holding the read count of the most
	// recent completed classification.
	MetricLastRunReads = "readsweep_last_run_reads"

	// Staging metrics.
	MetricStagedFiles = "readsweep_staged_files_total"
)

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
