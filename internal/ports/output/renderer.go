package output

import (
	"context"
	"image"
	"image/color"

	"github.com/jobrunner/tilery/internal/domain"
)

// Renderer is the secondary port for map rasterization. The actual map
// drawing is an external capability; the pipeline only depends on this
// call shape.
type Renderer interface {
	// Render rasterizes the given geographic rectangle into an image of
	// the requested pixel dimensions.
	Render(ctx context.Context, extent domain.Extent, widthPx, heightPx int, background color.Color) (image.Image, error)
}

// Encoder is the secondary port for image encoding.
type Encoder interface {
	// Encode serializes pixels to the given format at the given quality.
	Encode(img image.Image, format string, quality int) ([]byte, error)
}
