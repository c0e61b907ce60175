package render

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/jobrunner/tilery/internal/domain"
)

// ImageCodec encodes pixel buffers with the standard library codecs.
type ImageCodec struct{}

// Encode implements output.Encoder. PNG ignores the quality parameter;
// JPEG maps it directly onto the encoder quality.
func (ImageCodec) Encode(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case domain.FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	case domain.FormatJPG, "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, format)
	}
	return buf.Bytes(), nil
}
