package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// SetTilesPlanned sets the number of tiles the current run will render.
	SetTilesPlanned(count int)

	// SetTilesCompleted sets the number of tiles rendered so far.
	SetTilesCompleted(count int)

	// IncTilesRendered increments the rendered tile counter.
	IncTilesRendered(format string, success bool)

	// ObserveRenderDuration records how long one tile render+encode took.
	ObserveRenderDuration(duration time.Duration)

	// IncSinkWrites increments the sink write counter.
	IncSinkWrites(sink string, success bool)

	// ObserveSinkWriteDuration records one sink write duration.
	ObserveSinkWriteDuration(sink string, duration time.Duration)

	// IncCompactionBlobs counts blobs seen by the compaction pass,
	// split into stored (first occurrence) and deduplicated.
	IncCompactionBlobs(deduplicated bool)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// SetTilesPlanned implements MetricsCollector.
func (n *NoOpMetrics) SetTilesPlanned(_ int) {}

// SetTilesCompleted implements MetricsCollector.
func (n *NoOpMetrics) SetTilesCompleted(_ int) {}

// IncTilesRendered implements MetricsCollector.
func (n *NoOpMetrics) IncTilesRendered(_ string, _ bool) {}

// ObserveRenderDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveRenderDuration(_ time.Duration) {}

// IncSinkWrites implements MetricsCollector.
func (n *NoOpMetrics) IncSinkWrites(_ string, _ bool) {}

// ObserveSinkWriteDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveSinkWriteDuration(_ string, _ time.Duration) {}

// IncCompactionBlobs implements MetricsCollector.
func (n *NoOpMetrics) IncCompactionBlobs(_ bool) {}
