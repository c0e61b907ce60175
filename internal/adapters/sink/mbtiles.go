package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"github.com/jobrunner/tilery/internal/domain"
	"github.com/jobrunner/tilery/internal/ports/output"
)

// MBTilesConfig describes the database to create.
type MBTilesConfig struct {
	Path        string
	Name        string
	Description string
	Format      string
	MinZoom     int
	MaxZoom     int
	Bounds      domain.Extent
	Compact     bool // run the deduplication pass at finalize time
}

// MBTilesSink writes tiles into an MBTiles SQLite database. MBTiles
// addresses rows in the TMS convention; callers are expected to hand it
// TMS-schemed addresses.
type MBTilesSink struct {
	db      *sql.DB
	cfg     MBTilesConfig
	metrics output.MetricsCollector
	logger  *slog.Logger

	finalized bool
}

// NewMBTilesSink opens (creating if absent) the database, sets up the
// schema, and writes the fixed metadata row set.
func NewMBTilesSink(ctx context.Context, cfg MBTilesConfig, metrics output.MetricsCollector, logger *slog.Logger) (*MBTilesSink, error) {
	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, &domain.SinkError{Operation: "open", Sink: "mbtiles", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &domain.SinkError{Operation: "open", Sink: "mbtiles", Err: err}
	}

	s := &MBTilesSink{db: db, cfg: cfg, metrics: metrics, logger: logger}
	if s.metrics == nil {
		s.metrics = &output.NoOpMetrics{}
	}
	if err := s.setup(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MBTilesSink) setup(ctx context.Context) error {
	// Bulk-load settings: this sink owns the database exclusively until
	// Finalize returns.
	pragmas := []string{
		`PRAGMA synchronous = 0`,
		`PRAGMA locking_mode = EXCLUSIVE`,
		`PRAGMA journal_mode = DELETE`,
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return &domain.SinkError{Operation: "setup", Sink: "mbtiles", Err: err}
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS metadata (name TEXT, value TEXT)`,
		`CREATE TABLE IF NOT EXISTS tiles (zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_data BLOB)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS metadata_name ON metadata (name)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS tile_index ON tiles (zoom_level, tile_column, tile_row)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &domain.SinkError{Operation: "setup", Sink: "mbtiles", Err: err}
		}
	}

	metadata := [][2]string{
		{"name", s.cfg.Name},
		{"description", s.cfg.Description},
		{"format", s.cfg.Format},
		{"minZoom", strconv.Itoa(s.cfg.MinZoom)},
		{"maxZoom", strconv.Itoa(s.cfg.MaxZoom)},
		{"type", "baselayer"},
		{"version", "1.1"},
		{"bounds", s.cfg.Bounds.BoundsString()},
	}
	for _, row := range metadata {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO metadata (name, value) VALUES (?, ?)`,
			row[0], row[1],
		)
		if err != nil {
			return &domain.SinkError{Operation: "setup", Sink: "mbtiles", Err: err}
		}
	}
	return nil
}

// WriteTile implements output.TileSink. Pre-compaction layout: the
// payload is stored inline in the tiles table.
func (s *MBTilesSink) WriteTile(ctx context.Context, tile *domain.RenderedTile) error {
	if s.finalized {
		return &domain.SinkError{Operation: "write", Sink: "mbtiles", Err: domain.ErrSinkFinalized}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)`,
		tile.Address.Z, tile.Address.X, tile.Address.Y, tile.Data,
	)
	if err != nil {
		return &domain.SinkError{Operation: "write", Sink: "mbtiles", Err: err}
	}
	return nil
}

// Finalize implements output.TileSink. Index/vacuum optimization always
// runs; the deduplication pass runs only when requested. A compaction
// failure is fatal to the compaction step only: the pre-compaction
// tiles table stays valid and the database still closes cleanly.
func (s *MBTilesSink) Finalize(ctx context.Context) error {
	if s.finalized {
		return nil
	}
	s.finalized = true

	var errs []error

	if err := s.optimize(ctx); err != nil {
		errs = append(errs, err)
	}

	if s.cfg.Compact && len(errs) == 0 {
		compactor := NewCompactor(s.db, s.metrics, s.logger)
		if err := compactor.Run(ctx); err != nil {
			errs = append(errs, err)
		} else if err := s.optimize(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}

	if len(errs) > 0 {
		return &domain.SinkError{Operation: "finalize", Sink: "mbtiles", Err: errors.Join(errs...)}
	}
	return nil
}

func (s *MBTilesSink) optimize(ctx context.Context) error {
	return Optimize(ctx, s.db)
}

// Optimize refreshes planner statistics and reclaims free pages. It
// runs after bulk loading and after the deduplication pass, including
// the standalone compact command.
func Optimize(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `ANALYZE`); err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	// VACUUM needs journal_mode DELETE and no open transaction.
	if _, err := db.ExecContext(ctx, `VACUUM`); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}
