// Package layer provides source layer adapters.
package layer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/tilery/internal/domain"
)

// GeoJSONLayer is a map layer backed by a GeoJSON file. Its extent is
// the union of the feature geometry bounds.
type GeoJSONLayer struct {
	name   string
	source string
	extent domain.Extent
}

// LoadGeoJSON reads a feature collection and derives the layer extent.
func LoadGeoJSON(path string) (*GeoJSONLayer, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path comes from the user's own configuration
	if err != nil {
		return nil, fmt.Errorf("reading layer source: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing layer source %s: %w", path, err)
	}
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("layer source %s: %w: no features", path, domain.ErrInvalidRequest)
	}

	// RFC 7946 allows features with a null geometry; they contribute no
	// bound.
	var bound orb.Bound
	haveBound := false
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if !haveBound {
			bound = f.Geometry.Bound()
			haveBound = true
			continue
		}
		bound = bound.Union(f.Geometry.Bound())
	}
	if !haveBound {
		return nil, fmt.Errorf("layer source %s: %w: no feature geometries", path, domain.ErrInvalidRequest)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &GeoJSONLayer{
		name:   name,
		source: path,
		extent: boundToExtent(bound),
	}, nil
}

// Name implements output.Layer.
func (l *GeoJSONLayer) Name() string { return l.name }

// Extent implements output.Layer.
func (l *GeoJSONLayer) Extent() domain.Extent { return l.extent }

// Source implements output.Layer.
func (l *GeoJSONLayer) Source() string { return l.source }

func boundToExtent(b orb.Bound) domain.Extent {
	return domain.Extent{
		MinX: b.Min[0],
		MinY: b.Min[1],
		MaxX: b.Max[0],
		MaxY: b.Max[1],
		SRID: domain.SRIDWGS84,
	}
}

// StaticLayer is a layer defined by a fixed extent, used for remote tile
// services and configuration-declared coverage areas.
type StaticLayer struct {
	LayerName   string
	LayerSource string
	LayerExtent domain.Extent
}

// Name implements output.Layer.
func (l StaticLayer) Name() string { return l.LayerName }

// Extent implements output.Layer.
func (l StaticLayer) Extent() domain.Extent { return l.LayerExtent }

// Source implements output.Layer.
func (l StaticLayer) Source() string { return l.LayerSource }
