// Package geodesy provides coordinate reference system transforms.
package geodesy

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/jobrunner/tilery/internal/domain"
)

// OrbTransformer transforms extents between WGS84 and Web Mercator using
// the orb projection helpers. Other CRS pairs are an external geodesy
// concern and are rejected.
type OrbTransformer struct{}

// NewOrbTransformer creates the transformer.
func NewOrbTransformer() *OrbTransformer {
	return &OrbTransformer{}
}

// TransformExtent implements output.Transformer.
func (t *OrbTransformer) TransformExtent(e domain.Extent, toSRID int) (domain.Extent, error) {
	if e.SRID == toSRID {
		return e, nil
	}

	var fn func(orb.Point) orb.Point
	switch {
	case e.SRID == domain.SRIDWGS84 && toSRID == domain.SRIDWebMercator:
		fn = project.WGS84.ToMercator
	case e.SRID == domain.SRIDWebMercator && toSRID == domain.SRIDWGS84:
		fn = project.Mercator.ToWGS84
	default:
		return domain.Extent{}, fmt.Errorf("%w: %d -> %d", domain.ErrUnsupportedProjection, e.SRID, toSRID)
	}

	lo := fn(orb.Point{e.MinX, e.MinY})
	hi := fn(orb.Point{e.MaxX, e.MaxY})

	out := domain.Extent{MinX: lo[0], MinY: lo[1], MaxX: hi[0], MaxY: hi[1], SRID: toSRID}
	if out.MinX > out.MaxX {
		out.MinX, out.MaxX = out.MaxX, out.MinX
	}
	if out.MinY > out.MaxY {
		out.MinY, out.MaxY = out.MaxY, out.MinY
	}
	return out, nil
}
