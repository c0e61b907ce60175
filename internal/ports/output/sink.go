// Package output defines the secondary/driven ports of the application.
package output

import (
	"context"

	"github.com/jobrunner/tilery/internal/domain"
)

// TileSink is the secondary port for tile persistence.
//
// WriteTile is called exactly once per enumerated, successfully rendered
// address, in pipeline order. Finalize is called exactly once, after
// which the sink must not be reused. Sinks are single-writer: no two
// calls may be in flight concurrently on the same instance.
type TileSink interface {
	// WriteTile durably stores one rendered tile.
	WriteTile(ctx context.Context, tile *domain.RenderedTile) error

	// Finalize completes the container. It must leave the output in a
	// valid, reopenable state even after a partial run.
	Finalize(ctx context.Context) error
}

// SinkKind identifies the container format of a sink.
type SinkKind string

// Known sink kinds.
const (
	SinkKindDirectory SinkKind = "directory"
	SinkKindArchive   SinkKind = "archive"
	SinkKindNGM       SinkKind = "ngm"
	SinkKindMBTiles   SinkKind = "mbtiles"
)
