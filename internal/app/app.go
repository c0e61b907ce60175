// Package app provides application initialization and wiring.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jobrunner/tilery/internal/adapters/geodesy"
	"github.com/jobrunner/tilery/internal/adapters/httpapi"
	"github.com/jobrunner/tilery/internal/adapters/layer"
	"github.com/jobrunner/tilery/internal/adapters/metrics"
	"github.com/jobrunner/tilery/internal/adapters/publish"
	"github.com/jobrunner/tilery/internal/adapters/render"
	"github.com/jobrunner/tilery/internal/adapters/sink"
	"github.com/jobrunner/tilery/internal/adapters/watcher"
	"github.com/jobrunner/tilery/internal/application"
	"github.com/jobrunner/tilery/internal/config"
	"github.com/jobrunner/tilery/internal/domain"
	"github.com/jobrunner/tilery/internal/ports/input"
	"github.com/jobrunner/tilery/internal/ports/output"
)

// App holds all application components. Sinks and pipelines are built
// per run; everything else lives for the process.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Metrics    *metrics.Collector
	Enumerator *application.Enumerator
	Renderer   output.Renderer
	Encoder    output.Encoder
	Layers     []output.Layer
	Publisher  output.Publisher
	Watcher    *watcher.Watcher

	statusServer *httpapi.Server

	// mu guards current: the status server and the signal handler read
	// it from their own goroutines while runs are being built.
	mu      sync.Mutex
	current *application.Pipeline
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewCollector("tilery"),
	}

	transformer := geodesy.NewOrbTransformer()
	a.Enumerator = application.NewEnumerator(transformer, logger)
	a.Renderer = render.NewFlatRenderer(true, true)
	a.Encoder = render.ImageCodec{}

	layers, err := loadLayers(cfg.Layers)
	if err != nil {
		return nil, fmt.Errorf("loading layers: %w", err)
	}
	a.Layers = layers

	publisher, err := initPublisher(ctx, cfg.Publish)
	if err != nil {
		return nil, fmt.Errorf("initializing publisher: %w", err)
	}
	a.Publisher = publisher

	if cfg.Watch.Enabled {
		w, err := watcher.New(
			watcher.Config{
				Paths:    cfg.Watch.Paths,
				Debounce: cfg.Watch.Debounce,
			},
			a.handleFileEvent,
			logger,
		)
		if err != nil {
			logger.Warn("failed to initialize file watcher", "error", err)
		} else {
			a.Watcher = w
		}
	}

	return a, nil
}

// SinkKindForPath maps the output path extension onto a container kind.
func SinkKindForPath(path string) output.SinkKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return output.SinkKindArchive
	case ".ngrc":
		return output.SinkKindNGM
	case ".mbtiles":
		return output.SinkKindMBTiles
	default:
		return output.SinkKindDirectory
	}
}

// TilesetName returns the configured tileset name, defaulting to the
// output path base without extension.
func (a *App) TilesetName() string {
	if a.Config.Output.Name != "" {
		return a.Config.Output.Name
	}
	base := filepath.Base(a.Config.Output.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// rootDir returns the directory prefix used inside archive containers.
func (a *App) rootDir() string {
	if a.Config.Output.RootDir != "" {
		return a.Config.Output.RootDir
	}
	return a.TilesetName()
}

// Request assembles the render request from configuration. MBTiles
// containers address rows bottom-up, so that sink kind forces TMS.
func (a *App) Request() (domain.RenderRequest, error) {
	cfg := a.Config

	background, err := cfg.Tiles.BackgroundColor()
	if err != nil {
		return domain.RenderRequest{}, err
	}

	scheme := domain.SchemeXYZ
	if cfg.Tiles.TMS || SinkKindForPath(cfg.Output.Path) == output.SinkKindMBTiles {
		scheme = domain.SchemeTMS
	}

	return domain.RenderRequest{
		Extent:             cfg.Extent.Extent(),
		MinZoom:            cfg.Tiles.MinZoom,
		MaxZoom:            cfg.Tiles.MaxZoom,
		TileWidth:          cfg.Tiles.Width,
		TileHeight:         cfg.Tiles.Height,
		Format:             strings.ToLower(cfg.Tiles.Format),
		Quality:            cfg.Tiles.Quality,
		Background:         background,
		Scheme:             scheme,
		RenderOutsideTiles: cfg.Tiles.RenderOutsideTiles,
	}, nil
}

// buildSink constructs a fresh sink for one run.
func (a *App) buildSink(ctx context.Context, req domain.RenderRequest) (output.TileSink, output.SinkKind, error) {
	cfg := a.Config
	kind := SinkKindForPath(cfg.Output.Path)

	switch kind {
	case output.SinkKindDirectory:
		return sink.NewDirectorySink(cfg.Output.Path, a.rootDir(), req.Format), kind, nil

	case output.SinkKindArchive:
		s, err := sink.NewArchiveSink(cfg.Output.Path, a.rootDir(), req.Format)
		return s, kind, err

	case output.SinkKindNGM:
		s, err := sink.NewIndexedArchiveSink(cfg.Output.Path, a.TilesetName(), req.Format)
		return s, kind, err

	case output.SinkKindMBTiles:
		s, err := sink.NewMBTilesSink(ctx, sink.MBTilesConfig{
			Path:        cfg.Output.Path,
			Name:        a.TilesetName(),
			Description: cfg.MBTiles.Description,
			Format:      req.Format,
			MinZoom:     req.MinZoom,
			MaxZoom:     req.MaxZoom,
			Bounds:      req.Extent,
			Compact:     cfg.MBTiles.Compact,
		}, a.Metrics, a.Logger)
		return s, kind, err

	default:
		return nil, kind, fmt.Errorf("%w: sink kind %s", domain.ErrUnsupported, kind)
	}
}

// BuildPipeline assembles a pipeline for one run. The extra observer (a
// progress bar, typically) is fanned in alongside metrics reporting.
func (a *App) BuildPipeline(ctx context.Context, extra output.PipelineObserver) (*application.Pipeline, error) {
	req, err := a.Request()
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s, kind, err := a.buildSink(ctx, req)
	if err != nil {
		return nil, err
	}

	observer := output.PipelineObserver(output.NoOpObserver{})
	if extra != nil {
		observer = extra
	}

	p := application.NewPipeline(
		a.Enumerator,
		a.Renderer,
		a.Encoder,
		s,
		kind,
		observer,
		a.Metrics,
		[]application.LayerRestriction{application.OpenStreetMapRestriction{}},
		a.Logger,
		req,
		a.Layers,
		application.PipelineConfig{},
	)
	a.mu.Lock()
	a.current = p
	a.mu.Unlock()
	return p, nil
}

// RunOnce drives a single pipeline run to completion, then writes
// sidecars and publishes the finished container.
func (a *App) RunOnce(ctx context.Context, extra output.PipelineObserver) (input.Result, error) {
	p, err := a.BuildPipeline(ctx, extra)
	if err != nil {
		return input.Result{}, err
	}
	if err := p.Start(ctx); err != nil {
		return input.Result{}, err
	}
	res := p.Wait()

	if res.Outcome == domain.OutcomeDone {
		if err := a.writeSidecars(ctx); err != nil {
			a.Logger.Warn("writing sidecar files", "error", err)
		}
		if err := a.publishOutput(ctx); err != nil {
			return res, fmt.Errorf("publishing output: %w", err)
		}
	}

	return res, res.Err
}

// Current returns the pipeline of the most recent run, or nil.
func (a *App) Current() *application.Pipeline {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Status implements httpapi.StatusSource.
func (a *App) Status() application.Status {
	p := a.Current()
	if p == nil {
		return application.Status{State: application.StateIdle.String()}
	}
	return p.Status()
}

// StartStatusServer starts the status listener if configured.
func (a *App) StartStatusServer() {
	if !a.Config.Status.Enabled {
		return
	}
	a.statusServer = httpapi.NewServer(a.Config.Status.Address, a, a.Logger)
	a.statusServer.Start()
}

// Shutdown stops background components.
func (a *App) Shutdown(ctx context.Context) {
	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}
	if a.statusServer != nil {
		if err := a.statusServer.Shutdown(ctx); err != nil {
			a.Logger.Error("status server shutdown error", "error", err)
		}
	}
}

// sidecarBase returns the sidecar path up to the extension dot: inside
// the tree for directory output, appended to the container path
// otherwise.
func (a *App) sidecarBase(kind output.SinkKind) string {
	if kind == output.SinkKindDirectory {
		return filepath.Join(a.Config.Output.Path, a.rootDir()) + "."
	}
	return a.Config.Output.Path + "."
}

// writeSidecars writes the configured auxiliary files. The JSON
// metadata and the overview image apply to every container kind; the
// mapurl file and the HTML viewer only make sense next to a directory
// tree.
func (a *App) writeSidecars(ctx context.Context) error {
	cfg := a.Config
	kind := SinkKindForPath(cfg.Output.Path)

	req, err := a.Request()
	if err != nil {
		return err
	}
	base := a.sidecarBase(kind)

	if cfg.Sidecar.JSON {
		if err := sink.WriteJSONSidecar(base+"json", a.rootDir(), req.Format, req.MinZoom, req.MaxZoom, req.Extent); err != nil {
			return err
		}
	}
	if cfg.Sidecar.Overview {
		if err := a.writeOverview(ctx, base+req.Format, req); err != nil {
			return err
		}
	}
	if kind != output.SinkKindDirectory {
		return nil
	}

	if cfg.Sidecar.Mapurl {
		if err := sink.WriteMapurl(base+"mapurl", a.rootDir(), req.MinZoom, req.MaxZoom, req.Extent.Center(), req.Scheme); err != nil {
			return err
		}
	}
	if cfg.Sidecar.Viewer {
		center := req.Extent.Center()
		if err := sink.WriteViewer(base+"html", sink.ViewerData{
			TilesDir:    a.rootDir(),
			TilesExt:    req.Format,
			TilesetName: a.TilesetName(),
			TMS:         req.Scheme == domain.SchemeTMS,
			CenterX:     center.X,
			CenterY:     center.Y,
			AvgZoom:     (req.MinZoom + req.MaxZoom) / 2,
			MaxZoom:     req.MaxZoom,
		}); err != nil {
			return err
		}
	}
	return nil
}

// writeOverview renders the whole request extent into a single preview
// image next to the tileset.
func (a *App) writeOverview(ctx context.Context, path string, req domain.RenderRequest) error {
	img, err := a.Renderer.Render(ctx, req.Extent, req.TileWidth, req.TileHeight, req.Background)
	if err != nil {
		return err
	}
	data, err := a.Encoder.Encode(img, req.Format, req.Quality)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o640)
}

// publishOutput ships the finished container to the configured
// destination.
func (a *App) publishOutput(ctx context.Context) error {
	if a.Publisher == nil {
		return nil
	}
	key := filepath.Base(a.Config.Output.Path)
	a.Logger.Info("publishing output", "path", a.Config.Output.Path, "key", key)
	return a.Publisher.Publish(ctx, a.Config.Output.Path, key)
}

// handleFileEvent re-renders the pyramid when a layer source changes.
func (a *App) handleFileEvent(ctx context.Context, event watcher.Event) error {
	if event.Operation == watcher.OpDelete {
		a.Logger.Warn("layer source deleted, keeping last output", "path", event.Path)
		return nil
	}

	layers, err := loadLayers(a.Config.Layers)
	if err != nil {
		return fmt.Errorf("reloading layers: %w", err)
	}
	a.Layers = layers

	a.Logger.Info("layer source changed, re-rendering", "path", event.Path)
	_, err = a.RunOnce(ctx, nil)
	return err
}

// loadLayers builds the layer set from configuration. File sources are
// loaded as GeoJSON; remote sources become static layers with their
// declared extents.
func loadLayers(cfgs []config.LayerConfig) ([]output.Layer, error) {
	layers := make([]output.Layer, 0, len(cfgs))
	for _, lc := range cfgs {
		if strings.HasPrefix(lc.Source, "http://") || strings.HasPrefix(lc.Source, "https://") {
			name := lc.Name
			if name == "" {
				name = lc.Source
			}
			layers = append(layers, layer.StaticLayer{
				LayerName:   name,
				LayerSource: lc.Source,
				LayerExtent: lc.Extent.Extent(),
			})
			continue
		}

		l, err := layer.LoadGeoJSON(lc.Source)
		if err != nil {
			return nil, err
		}
		layers = append(layers, l)
	}
	return layers, nil
}

// initPublisher initializes the configured publish backend, or nil when
// publishing is disabled.
func initPublisher(ctx context.Context, cfg config.PublishConfig) (output.Publisher, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil

	case string(output.PublisherTypeLocal):
		return publish.NewLocalPublisher(cfg.LocalPath), nil

	case string(output.PublisherTypeS3):
		return publish.NewS3Publisher(ctx, publish.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case string(output.PublisherTypeAzure):
		return publish.NewAzurePublisher(publish.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Prefix,
		})

	default:
		return nil, fmt.Errorf("unknown publish type: %s", cfg.Type)
	}
}
