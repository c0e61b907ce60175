// Package application contains the application services.
package application

import (
	"log/slog"

	"github.com/jobrunner/tilery/internal/domain"
	"github.com/jobrunner/tilery/internal/ports/output"
)

// Enumerator computes the set of tile addresses a request covers.
//
// It descends the quadtree depth-first from the zoom-0 root. A subtree is
// pruned only when the request extent does not intersect the tile
// rectangle; the per-layer inclusion filter never prunes, so a layer
// lying strictly inside a larger overlapping ancestor is still tiled
// correctly at every zoom level. Complexity is bounded by the number of
// tiles whose rectangle intersects the extent.
type Enumerator struct {
	transformer output.Transformer
	logger      *slog.Logger
}

// NewEnumerator creates a pyramid enumerator.
func NewEnumerator(transformer output.Transformer, logger *slog.Logger) *Enumerator {
	return &Enumerator{
		transformer: transformer,
		logger:      logger,
	}
}

// Enumerate returns the ordered sequence of tile addresses to render.
//
// A request violating its preconditions (zoom ordering, degenerate
// extent) is rejected before any descent. An extent that misses the
// globe entirely, or a layer set that matches nothing with
// RenderOutsideTiles off, yields an empty, non-error result; the caller
// reports that as "nothing to render".
func (e *Enumerator) Enumerate(req domain.RenderRequest, layers []output.Layer) ([]domain.TileAddress, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	layerExtents := e.resolveLayerExtents(layers)

	var tiles []domain.TileAddress
	e.descend(domain.RootTile(req.Scheme), req, layerExtents, &tiles)
	return tiles, nil
}

// resolveLayerExtents transforms every layer extent to WGS84 once, up
// front, so the descent does not re-project per visited tile.
func (e *Enumerator) resolveLayerExtents(layers []output.Layer) []domain.Extent {
	extents := make([]domain.Extent, 0, len(layers))
	for _, layer := range layers {
		ext, err := e.transformer.TransformExtent(layer.Extent(), domain.SRIDWGS84)
		if err != nil {
			e.logger.Warn("skipping layer with untransformable extent",
				"layer", layer.Name(),
				"srid", layer.Extent().SRID,
				"error", err,
			)
			continue
		}
		extents = append(extents, ext)
	}
	return extents
}

func (e *Enumerator) descend(tile domain.TileAddress, req domain.RenderRequest, layerExtents []domain.Extent, out *[]domain.TileAddress) {
	rect := tile.ToExtent()

	// The only pruning condition. Independent of the zoom range.
	if !req.Extent.Intersects(rect) {
		return
	}

	if int(tile.Z) >= req.MinZoom && int(tile.Z) <= req.MaxZoom {
		if req.RenderOutsideTiles {
			*out = append(*out, tile)
		} else {
			for _, ext := range layerExtents {
				if ext.Intersects(rect) {
					*out = append(*out, tile)
					break
				}
			}
		}
	}

	// Descend even when the tile itself was excluded above.
	if int(tile.Z) < req.MaxZoom {
		for _, child := range tile.Children() {
			e.descend(child, req, layerExtents, out)
		}
	}
}
