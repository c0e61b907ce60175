package render

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/jobrunner/tilery/internal/domain"
)

func TestFlatRendererSizeAndBackground(t *testing.T) {
	r := NewFlatRenderer(false, false)
	background := color.NRGBA{R: 200, G: 100, B: 50, A: 255}

	img, err := r.Render(context.Background(), domain.NewWGS84Extent(0, 0, 1, 1), 64, 32, background)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	b := img.Bounds()
	if b.Dx() != 64 || b.Dy() != 32 {
		t.Errorf("image size = %dx%d, want 64x32", b.Dx(), b.Dy())
	}

	cr, cg, cb, _ := img.At(5, 5).RGBA()
	if uint8(cr>>8) != 200 || uint8(cg>>8) != 100 || uint8(cb>>8) != 50 {
		t.Errorf("pixel = (%d, %d, %d), want background (200, 100, 50)", cr>>8, cg>>8, cb>>8)
	}
}

func TestFlatRendererHonorsCancellation(t *testing.T) {
	r := NewFlatRenderer(false, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Render(ctx, domain.NewWGS84Extent(0, 0, 1, 1), 8, 8, color.White); err == nil {
		t.Error("Render should fail on a cancelled context")
	}
}

func TestImageCodecEncodePNG(t *testing.T) {
	r := NewFlatRenderer(false, false)
	img, err := r.Render(context.Background(), domain.NewWGS84Extent(0, 0, 1, 1), 16, 16, color.White)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	data, err := ImageCodec{}.Encode(img, domain.FormatPNG, 0)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("output is not valid PNG: %v", err)
	}
}

func TestImageCodecEncodeJPEG(t *testing.T) {
	r := NewFlatRenderer(false, false)
	img, err := r.Render(context.Background(), domain.NewWGS84Extent(0, 0, 1, 1), 16, 16, color.White)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	for _, format := range []string{domain.FormatJPG, "jpeg", "JPG"} {
		data, err := ImageCodec{}.Encode(img, format, 80)
		if err != nil {
			t.Errorf("Encode(%q) failed: %v", format, err)
			continue
		}
		if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
			t.Errorf("output for %q is not valid JPEG: %v", format, err)
		}
	}
}

func TestImageCodecUnknownFormat(t *testing.T) {
	r := NewFlatRenderer(false, false)
	img, err := r.Render(context.Background(), domain.NewWGS84Extent(0, 0, 1, 1), 8, 8, color.White)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	_, err = ImageCodec{}.Encode(img, "webp", 0)
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("Encode(webp) = %v, want ErrUnsupportedFormat", err)
	}
}
