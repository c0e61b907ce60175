package output

import "github.com/jobrunner/tilery/internal/domain"

// Transformer is the secondary port for coordinate reference system
// transforms. Tile geometry itself is always WGS84; the transformer is
// needed only to bring layer extents into the tile CRS for intersection
// tests.
type Transformer interface {
	// TransformExtent re-projects an extent into the target SRID.
	TransformExtent(e domain.Extent, toSRID int) (domain.Extent, error)
}
