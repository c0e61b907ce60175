package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jobrunner/tilery/internal/domain"
	"github.com/jobrunner/tilery/internal/ports/input"
	"github.com/jobrunner/tilery/internal/ports/output"
)

// WarningThresholdTiles is the planned-tile count above which the
// pipeline suspends and asks the driver for confirmation.
const WarningThresholdTiles = 10000

// State is the pipeline lifecycle state.
type State int

// Pipeline states.
const (
	StateIdle State = iota
	StatePreparing
	StateAwaitingConfirmation
	StateRendering
	StateFinalizing
	StateDone
	StateInterrupted
	StateEmpty
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateRendering:
		return "rendering"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateInterrupted:
		return "interrupted"
	case StateEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot of a run, served by the status
// endpoint.
type Status struct {
	RunID         string    `json:"run_id"`
	State         string    `json:"state"`
	TilesPlanned  int       `json:"tiles_planned"`
	TilesRendered int       `json:"tiles_rendered"`
	StartedAt     time.Time `json:"started_at"`
}

// PipelineConfig holds pipeline tuning knobs.
type PipelineConfig struct {
	// ThresholdTiles overrides WarningThresholdTiles when positive.
	ThresholdTiles int
}

// Pipeline orchestrates enumerator output through the renderer into a
// sink. It owns the sink exclusively for its entire lifetime.
//
// Two threads of control touch a pipeline: the driver (Start, Stop,
// ConfirmContinue, ConfirmStop, Wait, Status) and the pipeline goroutine
// itself. Cancellation is cooperative and observed only between tiles;
// an in-flight render/encode/write is never interrupted.
type Pipeline struct {
	enumerator   *Enumerator
	renderer     output.Renderer
	encoder      output.Encoder
	sink         output.TileSink
	sinkKind     output.SinkKind
	observer     output.PipelineObserver
	metrics      output.MetricsCollector
	restrictions []LayerRestriction
	logger       *slog.Logger

	req       domain.RenderRequest
	layers    []output.Layer
	runID     string
	threshold int

	// gateCh is a one-shot rendezvous: buffered so the driver may
	// resolve the gate from inside the threshold event callback.
	gateCh   chan bool
	gateOnce sync.Once

	stopCh   chan struct{}
	stopOnce sync.Once

	wg      sync.WaitGroup
	started bool

	mu        sync.Mutex
	state     State
	planned   int
	rendered  int
	startedAt time.Time
	result    input.Result
}

// NewPipeline creates a render pipeline for one request. The sink must be
// freshly constructed and is consumed by the run.
func NewPipeline(
	enumerator *Enumerator,
	renderer output.Renderer,
	encoder output.Encoder,
	sink output.TileSink,
	sinkKind output.SinkKind,
	observer output.PipelineObserver,
	metrics output.MetricsCollector,
	restrictions []LayerRestriction,
	logger *slog.Logger,
	req domain.RenderRequest,
	layers []output.Layer,
	cfg PipelineConfig,
) *Pipeline {
	threshold := cfg.ThresholdTiles
	if threshold <= 0 {
		threshold = WarningThresholdTiles
	}
	if observer == nil {
		observer = output.NoOpObserver{}
	}
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	return &Pipeline{
		enumerator:   enumerator,
		renderer:     renderer,
		encoder:      encoder,
		sink:         sink,
		sinkKind:     sinkKind,
		observer:     observer,
		metrics:      metrics,
		restrictions: restrictions,
		logger:       logger,
		req:          req,
		layers:       layers,
		runID:        uuid.NewString(),
		threshold:    threshold,
		gateCh:       make(chan bool, 1),
		stopCh:       make(chan struct{}),
		state:        StateIdle,
	}
}

// RunID returns the unique identifier of this run.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Start validates the request and launches the pipeline goroutine. A
// validation failure is returned synchronously; the sink is not touched.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("pipeline: %w: already started", domain.ErrInternal)
	}
	if err := p.req.Validate(); err != nil {
		return err
	}
	p.started = true
	p.startedAt = time.Now()
	p.state = StatePreparing

	p.wg.Add(1)
	go p.run(ctx)
	return nil
}

// Stop requests a cooperative stop and joins the pipeline goroutine. It
// also resolves a pending threshold gate so the join cannot deadlock.
// Safe to call whether or not the pipeline was started.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

// ConfirmContinue resolves the threshold gate with a go-ahead.
func (p *Pipeline) ConfirmContinue() {
	p.gateOnce.Do(func() { p.gateCh <- true })
}

// ConfirmStop resolves the threshold gate with a stop decision.
func (p *Pipeline) ConfirmStop() {
	p.gateOnce.Do(func() { p.gateCh <- false })
}

// Wait blocks until the run terminates and returns its result.
func (p *Pipeline) Wait() input.Result {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Status returns a snapshot of the current run.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		RunID:         p.runID,
		State:         p.state.String(),
		TilesPlanned:  p.planned,
		TilesRendered: p.rendered,
		StartedAt:     p.startedAt,
	}
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Pipeline) stopRequested(ctx context.Context) bool {
	select {
	case <-p.stopCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// run executes Preparing -> (ThresholdGate) -> Rendering -> Finalizing on
// the pipeline goroutine.
func (p *Pipeline) run(ctx context.Context) {
	defer p.wg.Done()

	tiles, layers := p.prepare()

	interrupted := false
	var runErr error

	if len(tiles) > p.threshold {
		p.setState(StateAwaitingConfirmation)
		p.observer.ThresholdExceeded(len(tiles), p.threshold)
		p.logger.Info("tile count exceeds threshold, awaiting confirmation",
			"run_id", p.runID,
			"tiles", len(tiles),
			"threshold", p.threshold,
		)
		select {
		case proceed := <-p.gateCh:
			if !proceed {
				interrupted = true
			}
		case <-p.stopCh:
			interrupted = true
		case <-ctx.Done():
			interrupted = true
		}
	}

	rendered := 0
	if !interrupted {
		p.setState(StateRendering)
		rendered, runErr = p.renderLoop(ctx, tiles, layers)
		if runErr != nil || p.stopRequested(ctx) {
			interrupted = rendered < len(tiles)
		}
	}

	// Finalize exactly once, on every path, so partial output is always a
	// valid, reopenable container.
	p.setState(StateFinalizing)
	if err := p.sink.Finalize(ctx); err != nil {
		ferr := &domain.SinkError{Operation: "finalize", Sink: string(p.sinkKind), Err: err}
		runErr = errors.Join(runErr, ferr)
		p.logger.Error("sink finalize failed", "run_id", p.runID, "error", ferr)
	}

	outcome := domain.OutcomeDone
	state := StateDone
	switch {
	case interrupted || runErr != nil:
		outcome = domain.OutcomeInterrupted
		state = StateInterrupted
	case len(tiles) == 0:
		outcome = domain.OutcomeEmpty
		state = StateEmpty
	}

	p.mu.Lock()
	p.state = state
	p.result = input.Result{
		Outcome:       outcome,
		TilesPlanned:  len(tiles),
		TilesRendered: rendered,
		Err:           runErr,
	}
	p.mu.Unlock()

	p.observer.Finished(outcome)
	p.logger.Info("pipeline finished",
		"run_id", p.runID,
		"outcome", outcome.String(),
		"rendered", rendered,
		"planned", len(tiles),
	)
}

// prepare enumerates the pyramid and applies restriction policies,
// re-enumerating when a policy removed layers that participate in the
// inclusion filter.
func (p *Pipeline) prepare() ([]domain.TileAddress, []output.Layer) {
	layers := p.layers

	// Validate ran in Start, so Enumerate cannot fail here.
	tiles, _ := p.enumerator.Enumerate(p.req, layers)

	for _, restriction := range p.restrictions {
		res := restriction.Check(layers, len(tiles))
		if len(res.Skipped) == 0 {
			continue
		}
		names := make([]string, len(res.Skipped))
		for i, l := range res.Skipped {
			names[i] = l.Name()
		}
		p.observer.LayersSkipped(names, res.Message)
		p.logger.Warn("restriction policy skipped layers",
			"run_id", p.runID,
			"layers", names,
		)
		layers = res.Remaining
		if !p.req.RenderOutsideTiles {
			tiles, _ = p.enumerator.Enumerate(p.req, layers)
		}
	}

	p.mu.Lock()
	p.planned = len(tiles)
	p.mu.Unlock()
	p.metrics.SetTilesPlanned(len(tiles))
	p.observer.RangeChanged(len(tiles))

	return tiles, layers
}

// renderLoop renders tiles in enumerator order until done, a failure, or
// a stop request. It returns the number of tiles fully written.
func (p *Pipeline) renderLoop(ctx context.Context, tiles []domain.TileAddress, _ []output.Layer) (int, error) {
	rendered := 0
	for _, addr := range tiles {
		// Stop before the next tile, never mid-tile.
		if p.stopRequested(ctx) {
			break
		}

		start := time.Now()
		payload, err := p.renderTile(ctx, addr)
		if err != nil {
			p.metrics.IncTilesRendered(p.req.Format, false)
			return rendered, err
		}
		p.metrics.ObserveRenderDuration(time.Since(start))
		p.metrics.IncTilesRendered(p.req.Format, true)

		writeStart := time.Now()
		if err := p.sink.WriteTile(ctx, payload); err != nil {
			p.metrics.IncSinkWrites(string(p.sinkKind), false)
			return rendered, &domain.SinkError{Operation: "write", Sink: string(p.sinkKind), Err: err}
		}
		p.metrics.IncSinkWrites(string(p.sinkKind), true)
		p.metrics.ObserveSinkWriteDuration(string(p.sinkKind), time.Since(writeStart))

		rendered++
		p.mu.Lock()
		p.rendered = rendered
		p.mu.Unlock()
		p.metrics.SetTilesCompleted(rendered)
		p.observer.TileRendered(rendered, len(tiles))
	}
	return rendered, nil
}

// renderTile rasterizes and encodes a single tile.
func (p *Pipeline) renderTile(ctx context.Context, addr domain.TileAddress) (*domain.RenderedTile, error) {
	img, err := p.renderer.Render(ctx, addr.ToExtent(), p.req.TileWidth, p.req.TileHeight, p.req.Background)
	if err != nil {
		return nil, &domain.RenderError{Address: addr, Stage: "render", Err: err}
	}
	data, err := p.encoder.Encode(img, p.req.Format, p.req.Quality)
	if err != nil {
		return nil, &domain.RenderError{Address: addr, Stage: "encode", Err: err}
	}
	return domain.NewRenderedTile(addr, data), nil
}
