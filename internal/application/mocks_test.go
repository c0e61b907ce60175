package application

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/jobrunner/tilery/internal/domain"
)

// staticLayer implements output.Layer for testing.
type staticLayer struct {
	name   string
	source string
	extent domain.Extent
}

func (l staticLayer) Name() string          { return l.name }
func (l staticLayer) Extent() domain.Extent { return l.extent }
func (l staticLayer) Source() string        { return l.source }

// mockTransformer implements output.Transformer for testing.
type mockTransformer struct {
	shouldFail bool
}

func (m *mockTransformer) TransformExtent(e domain.Extent, toSRID int) (domain.Extent, error) {
	if m.shouldFail {
		return domain.Extent{}, domain.ErrUnsupportedProjection
	}
	e.SRID = toSRID
	return e, nil
}

// mockRenderer implements output.Renderer for testing.
type mockRenderer struct {
	mu      sync.Mutex
	calls   int
	failAt  int           // 1-based call index that fails, 0 = never
	blockAt int           // 1-based call index that blocks, 0 = never
	reached chan struct{} // closed when the blocking call is entered
	release chan struct{} // the blocking call waits on this
}

func (m *mockRenderer) Render(_ context.Context, _ domain.Extent, w, h int, _ color.Color) (image.Image, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()

	if m.blockAt > 0 && call == m.blockAt {
		close(m.reached)
		<-m.release
	}
	if m.failAt > 0 && call == m.failAt {
		return nil, fmt.Errorf("render backend unavailable")
	}
	return image.NewNRGBA(image.Rect(0, 0, w, h)), nil
}

func (m *mockRenderer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockEncoder implements output.Encoder for testing.
type mockEncoder struct {
	err error
}

func (m *mockEncoder) Encode(_ image.Image, format string, _ int) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []byte("encoded-" + format), nil
}

// mockSink implements output.TileSink for testing.
type mockSink struct {
	mu            sync.Mutex
	written       []domain.TileAddress
	writeErrAt    int // 1-based write index that fails, 0 = never
	finalizeCount int
	finalizeErr   error
}

func (m *mockSink) WriteTile(_ context.Context, tile *domain.RenderedTile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErrAt > 0 && len(m.written)+1 == m.writeErrAt {
		return fmt.Errorf("disk full")
	}
	m.written = append(m.written, tile.Address)
	return nil
}

func (m *mockSink) Finalize(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalizeCount++
	return m.finalizeErr
}

func (m *mockSink) writtenTiles() []domain.TileAddress {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TileAddress, len(m.written))
	copy(out, m.written)
	return out
}

func (m *mockSink) finalizations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finalizeCount
}

// recordingObserver implements output.PipelineObserver for testing.
type recordingObserver struct {
	mu              sync.Mutex
	totals          []int
	progress        []int
	thresholdCount  int
	thresholdCalls  int
	skippedLayers   []string
	outcomes        []domain.Outcome
	onThreshold     func(count, threshold int)
	onTileRendered  func(done, total int)
}

func (o *recordingObserver) RangeChanged(total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.totals = append(o.totals, total)
}

func (o *recordingObserver) TileRendered(done, total int) {
	o.mu.Lock()
	o.progress = append(o.progress, done)
	cb := o.onTileRendered
	o.mu.Unlock()
	if cb != nil {
		cb(done, total)
	}
}

func (o *recordingObserver) ThresholdExceeded(count, threshold int) {
	o.mu.Lock()
	o.thresholdCount = count
	o.thresholdCalls++
	cb := o.onThreshold
	o.mu.Unlock()
	if cb != nil {
		cb(count, threshold)
	}
}

func (o *recordingObserver) LayersSkipped(names []string, _ string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skippedLayers = append(o.skippedLayers, names...)
}

func (o *recordingObserver) Finished(outcome domain.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) finishedWith() []domain.Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.Outcome, len(o.outcomes))
	copy(out, o.outcomes)
	return out
}
