// Package render provides the built-in renderer and image codec
// adapters. Real map rasterization is an external capability; the flat
// renderer exists for previews, plumbing tests and placeholder tilesets.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"

	"github.com/jobrunner/tilery/internal/domain"
)

// FlatRenderer fills each tile with the background color, optionally
// drawing the tile outline and its geographic extent as a label.
type FlatRenderer struct {
	DrawOutline bool
	DrawLabel   bool
}

// NewFlatRenderer creates a flat renderer.
func NewFlatRenderer(drawOutline, drawLabel bool) *FlatRenderer {
	return &FlatRenderer{DrawOutline: drawOutline, DrawLabel: drawLabel}
}

// Render implements output.Renderer.
func (r *FlatRenderer) Render(ctx context.Context, extent domain.Extent, widthPx, heightPx int, background color.Color) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dc := gg.NewContext(widthPx, heightPx)
	dc.SetColor(background)
	dc.Clear()

	if r.DrawOutline {
		dc.SetRGBA(0, 0, 0, 0.4)
		dc.SetLineWidth(1)
		dc.DrawRectangle(0.5, 0.5, float64(widthPx)-1, float64(heightPx)-1)
		dc.Stroke()
	}

	if r.DrawLabel {
		dc.SetRGBA(0, 0, 0, 0.7)
		label := fmt.Sprintf("%.4f,%.4f", extent.MinX, extent.MinY)
		dc.DrawStringAnchored(label, float64(widthPx)/2, float64(heightPx)/2, 0.5, 0.5)
	}

	return dc.Image(), nil
}
