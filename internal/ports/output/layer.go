package output

import "github.com/jobrunner/tilery/internal/domain"

// Layer is a source map layer. The pipeline treats layers as opaque
// handles: only the extent participates in tile inclusion decisions.
type Layer interface {
	// Name returns a human-readable layer name.
	Name() string

	// Extent returns the layer's bounding box in its native SRID.
	Extent() domain.Extent

	// Source returns the layer's backing URL or file path. Restriction
	// policies use it to identify the tile provider.
	Source() string
}
