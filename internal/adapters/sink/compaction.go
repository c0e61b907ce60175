package sink

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jobrunner/tilery/internal/domain"
	"github.com/jobrunner/tilery/internal/ports/output"
)

// compactionBatchSize bounds how many tile rows are held in memory while
// streaming the tiles table.
const compactionBatchSize = 500

// Compactor rewrites an MBTiles database so each distinct tile payload is
// stored exactly once. Coordinates move to a map table referencing an
// images table keyed by content hash; a view named tiles preserves the
// original (zoom_level, tile_column, tile_row, tile_data) read shape.
//
// The whole pass runs in one transaction: the original tiles table is
// dropped only after the new structures are complete and verified, so a
// failure mid-pass leaves the database exactly as it was.
type Compactor struct {
	db      *sql.DB
	metrics output.MetricsCollector
	logger  *slog.Logger
}

// NewCompactor creates a compactor over an open MBTiles database.
func NewCompactor(db *sql.DB, metrics output.MetricsCollector, logger *slog.Logger) *Compactor {
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	return &Compactor{db: db, metrics: metrics, logger: logger}
}

// Run executes the deduplication pass. Running it on an already
// compacted database is a no-op.
func (c *Compactor) Run(ctx context.Context) error {
	compacted, err := c.alreadyCompacted(ctx)
	if err != nil {
		return &domain.CompactionError{Stage: "inspect", Err: err}
	}
	if compacted {
		c.logger.Info("tiles already deduplicated, skipping compaction")
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.CompactionError{Stage: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if err := c.prepare(ctx, tx); err != nil {
		return &domain.CompactionError{Stage: "prepare", Err: err}
	}

	copied, distinct, err := c.copyTiles(ctx, tx)
	if err != nil {
		return &domain.CompactionError{Stage: "copy", Err: err}
	}

	if err := c.swap(ctx, tx, copied); err != nil {
		return &domain.CompactionError{Stage: "swap", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &domain.CompactionError{Stage: "commit", Err: err}
	}

	c.logger.Info("compaction finished",
		"tiles", copied,
		"distinct_payloads", distinct,
	)
	return nil
}

// alreadyCompacted reports whether tiles is already the join view.
func (c *Compactor) alreadyCompacted(ctx context.Context) (bool, error) {
	var typ string
	err := c.db.QueryRowContext(ctx,
		`SELECT type FROM sqlite_master WHERE name = 'tiles'`,
	).Scan(&typ)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("no tiles table present")
	}
	if err != nil {
		return false, err
	}
	return typ == "view", nil
}

func (c *Compactor) prepare(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE images (tile_id TEXT PRIMARY KEY, tile_data BLOB NOT NULL)`,
		`CREATE TABLE map (zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_id TEXT)`,
		`CREATE UNIQUE INDEX map_index ON map (zoom_level, tile_column, tile_row)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

type tileRow struct {
	rowid   int64
	z, x, y int
	data    []byte
}

// copyTiles streams every tile row into map/images, deduplicating by
// content hash. Rows are read in rowid-keyed batches so reads and writes
// never interleave on the transaction connection.
func (c *Compactor) copyTiles(ctx context.Context, tx *sql.Tx) (copied, distinct int, err error) {
	// tileIDs maps content hash to the assigned tile_id, resolving hash
	// collisions by full-content comparison.
	assigned := make(map[string]string)

	lastRowid := int64(-1)
	for {
		batch, err := c.readBatch(ctx, tx, lastRowid)
		if err != nil {
			return 0, 0, err
		}
		if len(batch) == 0 {
			break
		}
		for _, row := range batch {
			id, fresh, err := c.assignTileID(ctx, tx, assigned, row.data)
			if err != nil {
				return 0, 0, err
			}
			if fresh {
				distinct++
			}
			c.metrics.IncCompactionBlobs(!fresh)
			_, err = tx.ExecContext(ctx,
				`INSERT INTO map (zoom_level, tile_column, tile_row, tile_id) VALUES (?, ?, ?, ?)`,
				row.z, row.x, row.y, id,
			)
			if err != nil {
				return 0, 0, err
			}
			copied++
			lastRowid = row.rowid
		}
	}
	return copied, distinct, nil
}

func (c *Compactor) readBatch(ctx context.Context, tx *sql.Tx, after int64) ([]tileRow, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT rowid, zoom_level, tile_column, tile_row, tile_data
		 FROM tiles WHERE rowid > ? ORDER BY rowid LIMIT ?`,
		after, compactionBatchSize,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var batch []tileRow
	for rows.Next() {
		var r tileRow
		if err := rows.Scan(&r.rowid, &r.z, &r.x, &r.y, &r.data); err != nil {
			return nil, err
		}
		batch = append(batch, r)
	}
	return batch, rows.Err()
}

// assignTileID returns the tile_id for a payload, inserting it into
// images on first sight. A hash match is an index hint, not proof of
// equality: the stored bytes are compared, and a genuine collision gets
// a probed alternate id so distinct payloads are never merged.
func (c *Compactor) assignTileID(ctx context.Context, tx *sql.Tx, assigned map[string]string, data []byte) (string, bool, error) {
	hash := domain.ContentHashOf(data)

	id, ok := assigned[hash]
	if !ok {
		if err := c.insertImage(ctx, tx, hash, data); err != nil {
			return "", false, err
		}
		assigned[hash] = hash
		return hash, true, nil
	}

	// Walk the probe chain until the bytes match or a free id is found.
	for probe := 0; ; probe++ {
		var stored []byte
		err := tx.QueryRowContext(ctx,
			`SELECT tile_data FROM images WHERE tile_id = ?`, id,
		).Scan(&stored)
		if err == sql.ErrNoRows {
			if err := c.insertImage(ctx, tx, id, data); err != nil {
				return "", false, err
			}
			return id, true, nil
		}
		if err != nil {
			return "", false, err
		}
		if bytes.Equal(stored, data) {
			return id, false, nil
		}
		id = fmt.Sprintf("%s.%d", hash, probe+1)
	}
}

func (c *Compactor) insertImage(ctx context.Context, tx *sql.Tx, id string, data []byte) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO images (tile_id, tile_data) VALUES (?, ?)`,
		id, data,
	)
	return err
}

// swap verifies the copy is complete, then atomically replaces the tiles
// table with the join view exposing the identical read shape.
func (c *Compactor) swap(ctx context.Context, tx *sql.Tx, copied int) error {
	var original int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tiles`).Scan(&original); err != nil {
		return err
	}
	if original != copied {
		return fmt.Errorf("row count mismatch: copied %d of %d tiles", copied, original)
	}

	stmts := []string{
		`DROP TABLE tiles`,
		`CREATE VIEW tiles AS
		 SELECT map.zoom_level AS zoom_level,
		        map.tile_column AS tile_column,
		        map.tile_row AS tile_row,
		        images.tile_data AS tile_data
		 FROM map JOIN images ON images.tile_id = map.tile_id`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
