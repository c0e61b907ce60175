package output

import "github.com/jobrunner/tilery/internal/domain"

// PipelineObserver receives progress events from a render run. All
// methods are called from the pipeline goroutine; implementations must
// not block except during ThresholdExceeded, where the pipeline is
// suspended anyway until the gate is resolved.
type PipelineObserver interface {
	// RangeChanged reports the total number of tiles to render.
	RangeChanged(total int)

	// TileRendered reports progress after each tile. Counts, not
	// percentages; observers derive percentages if they want them.
	TileRendered(done, total int)

	// ThresholdExceeded reports that the planned tile count exceeds the
	// confirmation threshold. The pipeline suspends until the driver
	// resolves the gate.
	ThresholdExceeded(count, threshold int)

	// LayersSkipped reports layers removed by a restriction policy.
	LayersSkipped(names []string, message string)

	// Finished reports the terminal outcome, exactly once.
	Finished(outcome domain.Outcome)
}

// NoOpObserver is a no-op implementation of PipelineObserver.
type NoOpObserver struct{}

// RangeChanged implements PipelineObserver.
func (NoOpObserver) RangeChanged(_ int) {}

// TileRendered implements PipelineObserver.
func (NoOpObserver) TileRendered(_, _ int) {}

// ThresholdExceeded implements PipelineObserver.
func (NoOpObserver) ThresholdExceeded(_, _ int) {}

// LayersSkipped implements PipelineObserver.
func (NoOpObserver) LayersSkipped(_ []string, _ string) {}

// Finished implements PipelineObserver.
func (NoOpObserver) Finished(_ domain.Outcome) {}

// MultiObserver fans events out to several observers.
type MultiObserver []PipelineObserver

// RangeChanged implements PipelineObserver.
func (m MultiObserver) RangeChanged(total int) {
	for _, o := range m {
		o.RangeChanged(total)
	}
}

// TileRendered implements PipelineObserver.
func (m MultiObserver) TileRendered(done, total int) {
	for _, o := range m {
		o.TileRendered(done, total)
	}
}

// ThresholdExceeded implements PipelineObserver.
func (m MultiObserver) ThresholdExceeded(count, threshold int) {
	for _, o := range m {
		o.ThresholdExceeded(count, threshold)
	}
}

// LayersSkipped implements PipelineObserver.
func (m MultiObserver) LayersSkipped(names []string, message string) {
	for _, o := range m {
		o.LayersSkipped(names, message)
	}
}

// Finished implements PipelineObserver.
func (m MultiObserver) Finished(outcome domain.Outcome) {
	for _, o := range m {
		o.Finished(outcome)
	}
}
