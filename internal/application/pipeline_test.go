package application

import (
	"context"
	"testing"
	"time"

	"github.com/jobrunner/tilery/internal/domain"
	"github.com/jobrunner/tilery/internal/ports/output"
)

func newTestPipeline(
	req domain.RenderRequest,
	layers []output.Layer,
	renderer *mockRenderer,
	sink *mockSink,
	observer output.PipelineObserver,
	cfg PipelineConfig,
) *Pipeline {
	return NewPipeline(
		newTestEnumerator(),
		renderer,
		&mockEncoder{},
		sink,
		output.SinkKindDirectory,
		observer,
		nil,
		nil,
		testLogger(),
		req,
		layers,
		cfg,
	)
}

func TestPipelineRendersAllTilesInOrder(t *testing.T) {
	renderer := &mockRenderer{}
	sink := &mockSink{}
	observer := &recordingObserver{}

	p := newTestPipeline(globeRequest(0, 2), nil, renderer, sink, observer, PipelineConfig{})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	res := p.Wait()

	if res.Outcome != domain.OutcomeDone {
		t.Errorf("outcome = %v, want done", res.Outcome)
	}
	if res.TilesPlanned != 21 || res.TilesRendered != 21 {
		t.Errorf("planned/rendered = %d/%d, want 21/21", res.TilesPlanned, res.TilesRendered)
	}

	written := sink.writtenTiles()
	if len(written) != 21 {
		t.Fatalf("sink received %d tiles, want 21", len(written))
	}
	// Depth-first order: root first, max zoom reached before the next
	// zoom-1 sibling.
	if written[0].Z != 0 {
		t.Errorf("first tile zoom = %d, want 0", written[0].Z)
	}
	if written[1].Z != 1 || written[2].Z != 2 {
		t.Errorf("descent should go depth first, got zooms %d, %d", written[1].Z, written[2].Z)
	}

	if sink.finalizations() != 1 {
		t.Errorf("finalizations = %d, want 1", sink.finalizations())
	}
	if outcomes := observer.finishedWith(); len(outcomes) != 1 || outcomes[0] != domain.OutcomeDone {
		t.Errorf("observer outcomes = %v, want [done]", outcomes)
	}
}

func TestPipelineInvalidRequestFailsSynchronously(t *testing.T) {
	sink := &mockSink{}
	req := globeRequest(0, 2)
	req.Format = "webp"

	p := newTestPipeline(req, nil, &mockRenderer{}, sink, nil, PipelineConfig{})
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("Start should reject an invalid request")
	}
	if sink.finalizations() != 0 {
		t.Error("sink must not be touched on a rejected request")
	}
}

func TestPipelineEmptyOutcome(t *testing.T) {
	req := globeRequest(0, 2)
	req.RenderOutsideTiles = false // no layers matching -> nothing to do

	renderer := &mockRenderer{}
	sink := &mockSink{}
	p := newTestPipeline(req, nil, renderer, sink, nil, PipelineConfig{})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	res := p.Wait()

	if res.Outcome != domain.OutcomeEmpty {
		t.Errorf("outcome = %v, want empty", res.Outcome)
	}
	if renderer.callCount() != 0 {
		t.Errorf("renderer called %d times on an empty run", renderer.callCount())
	}
	// An empty run still produces a valid, finalized container.
	if sink.finalizations() != 1 {
		t.Errorf("finalizations = %d, want 1", sink.finalizations())
	}
	if st := p.Status(); st.State != StateEmpty.String() {
		t.Errorf("final state = %q, want empty", st.State)
	}
}

func TestPipelineRenderFailureStillFinalizes(t *testing.T) {
	renderer := &mockRenderer{failAt: 3}
	sink := &mockSink{}

	p := newTestPipeline(globeRequest(0, 2), nil, renderer, sink, nil, PipelineConfig{})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	res := p.Wait()

	if res.Outcome != domain.OutcomeInterrupted {
		t.Errorf("outcome = %v, want interrupted", res.Outcome)
	}
	if res.TilesRendered != 2 {
		t.Errorf("rendered = %d, want 2", res.TilesRendered)
	}
	if res.Err == nil {
		t.Error("result should carry the render error")
	}
	if sink.finalizations() != 1 {
		t.Errorf("finalizations = %d, want 1", sink.finalizations())
	}
}

func TestPipelineSinkFailureStillFinalizes(t *testing.T) {
	sink := &mockSink{writeErrAt: 5}

	p := newTestPipeline(globeRequest(0, 2), nil, &mockRenderer{}, sink, nil, PipelineConfig{})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	res := p.Wait()

	if res.Outcome != domain.OutcomeInterrupted {
		t.Errorf("outcome = %v, want interrupted", res.Outcome)
	}
	if res.TilesRendered != 4 {
		t.Errorf("rendered = %d, want 4", res.TilesRendered)
	}
	if sink.finalizations() != 1 {
		t.Errorf("finalizations = %d, want 1", sink.finalizations())
	}
}

func TestPipelineStopBetweenTiles(t *testing.T) {
	renderer := &mockRenderer{
		blockAt: 3,
		reached: make(chan struct{}),
		release: make(chan struct{}),
	}
	sink := &mockSink{}

	p := newTestPipeline(globeRequest(0, 2), nil, renderer, sink, nil, PipelineConfig{})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	<-renderer.reached

	// Request the stop while tile 3 is in flight, then let it finish. The
	// in-flight tile completes; tile 4 is never started.
	stopDone := make(chan struct{})
	go func() {
		p.Stop()
		close(stopDone)
	}()
	close(renderer.release)

	select {
	case <-stopDone:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	res := p.Wait()
	if res.Outcome != domain.OutcomeInterrupted {
		t.Errorf("outcome = %v, want interrupted", res.Outcome)
	}
	if res.TilesRendered != 3 {
		t.Errorf("rendered = %d, want 3 (in-flight tile completes)", res.TilesRendered)
	}
	if renderer.callCount() != 3 {
		t.Errorf("renderer calls = %d, want 3", renderer.callCount())
	}
	if sink.finalizations() != 1 {
		t.Errorf("finalizations = %d, want 1", sink.finalizations())
	}
}

func TestPipelineThresholdGateContinue(t *testing.T) {
	sink := &mockSink{}
	observer := &recordingObserver{}

	p := newTestPipeline(globeRequest(0, 2), nil, &mockRenderer{}, sink, observer, PipelineConfig{ThresholdTiles: 10})
	observer.onThreshold = func(_, _ int) { p.ConfirmContinue() }

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	res := p.Wait()

	if observer.thresholdCalls != 1 {
		t.Errorf("threshold events = %d, want 1", observer.thresholdCalls)
	}
	if observer.thresholdCount != 21 {
		t.Errorf("threshold count = %d, want 21", observer.thresholdCount)
	}
	if res.Outcome != domain.OutcomeDone || res.TilesRendered != 21 {
		t.Errorf("result = %v/%d, want done/21", res.Outcome, res.TilesRendered)
	}
}

func TestPipelineThresholdGateStop(t *testing.T) {
	renderer := &mockRenderer{}
	sink := &mockSink{}
	observer := &recordingObserver{}

	p := newTestPipeline(globeRequest(0, 2), nil, renderer, sink, observer, PipelineConfig{ThresholdTiles: 10})
	observer.onThreshold = func(_, _ int) { p.ConfirmStop() }

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	res := p.Wait()

	if res.Outcome != domain.OutcomeInterrupted {
		t.Errorf("outcome = %v, want interrupted", res.Outcome)
	}
	if renderer.callCount() != 0 {
		t.Errorf("renderer called %d times after a declined gate", renderer.callCount())
	}
	if sink.finalizations() != 1 {
		t.Errorf("finalizations = %d, want 1", sink.finalizations())
	}
}

func TestPipelineNoGateBelowThreshold(t *testing.T) {
	observer := &recordingObserver{}

	p := newTestPipeline(globeRequest(0, 2), nil, &mockRenderer{}, &mockSink{}, observer, PipelineConfig{ThresholdTiles: 100})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	res := p.Wait()

	if observer.thresholdCalls != 0 {
		t.Errorf("threshold events = %d, want 0", observer.thresholdCalls)
	}
	if res.Outcome != domain.OutcomeDone {
		t.Errorf("outcome = %v, want done", res.Outcome)
	}
}

func TestPipelineConfirmIsIdempotent(t *testing.T) {
	observer := &recordingObserver{}
	p := newTestPipeline(globeRequest(0, 2), nil, &mockRenderer{}, &mockSink{}, observer, PipelineConfig{ThresholdTiles: 10})
	observer.onThreshold = func(_, _ int) {
		p.ConfirmContinue()
		p.ConfirmStop() // late answer, must be ignored
		p.ConfirmContinue()
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	res := p.Wait()
	if res.Outcome != domain.OutcomeDone {
		t.Errorf("outcome = %v, want done (first answer wins)", res.Outcome)
	}
}

func TestPipelineDoubleStart(t *testing.T) {
	p := newTestPipeline(globeRequest(0, 0), nil, &mockRenderer{}, &mockSink{}, nil, PipelineConfig{})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := p.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
	p.Wait()
}

func TestPipelineContextCancellation(t *testing.T) {
	renderer := &mockRenderer{
		blockAt: 2,
		reached: make(chan struct{}),
		release: make(chan struct{}),
	}
	sink := &mockSink{}

	ctx, cancel := context.WithCancel(context.Background())
	p := newTestPipeline(globeRequest(0, 2), nil, renderer, sink, nil, PipelineConfig{})
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	<-renderer.reached
	cancel()
	close(renderer.release)

	res := p.Wait()
	if res.Outcome != domain.OutcomeInterrupted {
		t.Errorf("outcome = %v, want interrupted", res.Outcome)
	}
	if res.TilesRendered != 2 {
		t.Errorf("rendered = %d, want 2", res.TilesRendered)
	}
	if sink.finalizations() != 1 {
		t.Errorf("finalizations = %d, want 1", sink.finalizations())
	}
}

func TestPipelineStatusSnapshot(t *testing.T) {
	p := newTestPipeline(globeRequest(0, 1), nil, &mockRenderer{}, &mockSink{}, nil, PipelineConfig{})

	st := p.Status()
	if st.State != StateIdle.String() {
		t.Errorf("initial state = %q, want idle", st.State)
	}
	if st.RunID == "" {
		t.Error("run id should be assigned at construction")
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	p.Wait()

	st = p.Status()
	if st.State != StateDone.String() {
		t.Errorf("final state = %q, want done", st.State)
	}
	if st.TilesPlanned != 5 || st.TilesRendered != 5 {
		t.Errorf("status counts = %d/%d, want 5/5", st.TilesRendered, st.TilesPlanned)
	}
}

func TestPipelineRestrictionSkipsLayers(t *testing.T) {
	observer := &recordingObserver{}
	sink := &mockSink{}

	req := globeRequest(0, 2)
	layers := []output.Layer{
		staticLayer{name: "osm", source: "https://tile.openstreetmap.org/{z}/{x}/{y}.png", extent: req.Extent},
	}

	p := NewPipeline(
		newTestEnumerator(),
		&mockRenderer{},
		&mockEncoder{},
		sink,
		output.SinkKindDirectory,
		observer,
		nil,
		[]LayerRestriction{OpenStreetMapRestriction{MaxTiles: 10}},
		testLogger(),
		req,
		layers,
		PipelineConfig{},
	)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	res := p.Wait()

	if len(observer.skippedLayers) != 1 || observer.skippedLayers[0] != "osm" {
		t.Errorf("skipped layers = %v, want [osm]", observer.skippedLayers)
	}
	// RenderOutsideTiles is on, so the run proceeds without the layer.
	if res.Outcome != domain.OutcomeDone {
		t.Errorf("outcome = %v, want done", res.Outcome)
	}
}
