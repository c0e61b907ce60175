package domain

import "image/color"

// Supported tile image formats.
const (
	FormatPNG = "png"
	FormatJPG = "jpg"
)

// Outcome is the terminal state of a pipeline run. Done and Interrupted
// are mutually exclusive and reported exactly once.
type Outcome int

// Pipeline outcomes.
const (
	OutcomeDone        Outcome = iota // all enumerated tiles rendered and finalized
	OutcomeInterrupted                // stopped early; partial output finalized
	OutcomeEmpty                      // enumeration produced zero tiles
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeInterrupted:
		return "interrupted"
	case OutcomeEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// RenderRequest describes one tile pyramid generation run. It is owned by
// the caller and read-only to the pipeline.
type RenderRequest struct {
	Extent             Extent      // extent to cover, WGS84
	MinZoom            int         // lowest zoom level to emit
	MaxZoom            int         // highest zoom level to emit
	TileWidth          int         // output tile width in pixels
	TileHeight         int         // output tile height in pixels
	Format             string      // png or jpg
	Quality            int         // encoder quality, 0-100
	Background         color.NRGBA // background fill for the renderer
	Scheme             Scheme      // row numbering of emitted addresses
	RenderOutsideTiles bool        // emit tiles not covered by any layer
}

// Validate checks the request preconditions. A violation is rejected
// before enumeration starts and is never retried.
func (r RenderRequest) Validate() error {
	if r.MinZoom < 0 {
		return &ValidationError{
			Field:      "minZoom",
			Value:      r.MinZoom,
			Constraint: ">= 0",
			Message:    "minimum zoom must not be negative",
		}
	}
	if r.MinZoom > r.MaxZoom {
		return &ValidationError{
			Field:      "maxZoom",
			Value:      r.MaxZoom,
			Constraint: ">= minZoom",
			Message:    "maximum zoom is lower than minimum",
		}
	}
	if !r.Extent.IsValid() || r.Extent.IsDegenerate() {
		return &ValidationError{
			Field:      "extent",
			Value:      r.Extent.BoundsString(),
			Constraint: "non-degenerate",
			Message:    "extent is empty or degenerate",
		}
	}
	if r.TileWidth <= 0 || r.TileHeight <= 0 {
		return &ValidationError{
			Field:      "tileSize",
			Value:      r.TileWidth,
			Constraint: "> 0",
			Message:    "tile dimensions must be positive",
		}
	}
	if r.Format != FormatPNG && r.Format != FormatJPG {
		return &ValidationError{
			Field:      "format",
			Value:      r.Format,
			Constraint: "png|jpg",
			Message:    "unknown tile image format",
		}
	}
	if r.Quality < 0 || r.Quality > 100 {
		return &ValidationError{
			Field:      "quality",
			Value:      r.Quality,
			Constraint: "[0, 100]",
			Message:    "quality must be between 0 and 100",
		}
	}
	return nil
}
