package sink

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/jobrunner/tilery/internal/domain"
)

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	defer func() { _ = r.Close() }()

	entries := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("reading entry %s: %v", f.Name, err)
		}
		entries[f.Name] = string(data)
	}
	return entries
}

func TestArchiveSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles.zip")
	s, err := NewArchiveSink(path, "world", "png")
	if err != nil {
		t.Fatalf("NewArchiveSink failed: %v", err)
	}
	ctx := context.Background()

	tiles := []*domain.RenderedTile{
		domain.NewRenderedTile(domain.TileAddress{Z: 0, X: 0, Y: 0}, []byte("aaa")),
		domain.NewRenderedTile(domain.TileAddress{Z: 1, X: 0, Y: 1}, []byte("bbb")),
	}
	for _, tile := range tiles {
		if err := s.WriteTile(ctx, tile); err != nil {
			t.Fatalf("WriteTile failed: %v", err)
		}
	}
	if err := s.Finalize(ctx); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	entries := readArchive(t, path)
	if len(entries) != 2 {
		t.Fatalf("archive has %d entries, want 2", len(entries))
	}
	if entries["world/0/0/0.png"] != "aaa" {
		t.Errorf("entry world/0/0/0.png = %q, want %q", entries["world/0/0/0.png"], "aaa")
	}
	if entries["world/1/0/1.png"] != "bbb" {
		t.Errorf("entry world/1/0/1.png = %q, want %q", entries["world/1/0/1.png"], "bbb")
	}
}

func TestArchiveSinkEmptyRunIsValidArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.zip")
	s, err := NewArchiveSink(path, "world", "png")
	if err != nil {
		t.Fatalf("NewArchiveSink failed: %v", err)
	}
	if err := s.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	if entries := readArchive(t, path); len(entries) != 0 {
		t.Errorf("empty run produced %d entries, want 0", len(entries))
	}
}

func TestArchiveSinkWriteAfterFinalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles.zip")
	s, err := NewArchiveSink(path, "world", "png")
	if err != nil {
		t.Fatalf("NewArchiveSink failed: %v", err)
	}
	ctx := context.Background()

	if err := s.Finalize(ctx); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	err = s.WriteTile(ctx, domain.NewRenderedTile(domain.TileAddress{}, []byte("late")))
	if !errors.Is(err, domain.ErrSinkFinalized) {
		t.Errorf("WriteTile after Finalize = %v, want ErrSinkFinalized", err)
	}
}

func TestArchiveSinkDoubleFinalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles.zip")
	s, err := NewArchiveSink(path, "world", "png")
	if err != nil {
		t.Fatalf("NewArchiveSink failed: %v", err)
	}
	ctx := context.Background()

	if err := s.Finalize(ctx); err != nil {
		t.Fatalf("first Finalize failed: %v", err)
	}
	if err := s.Finalize(ctx); err != nil {
		t.Errorf("second Finalize = %v, want nil", err)
	}
}
