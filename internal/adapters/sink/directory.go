// Package sink provides the tile persistence adapters.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jobrunner/tilery/internal/domain"
)

// DirectorySink writes tiles as individual files under
// <output>/<root>/<z>/<x>/<y>.<ext>. Every write is immediately durable,
// so Finalize has nothing to do.
type DirectorySink struct {
	output string
	root   string
	ext    string

	// created caches (z, x) prefixes whose directory already exists, so
	// directories are made lazily and only once.
	created map[string]struct{}

	finalized bool
}

// NewDirectorySink creates a directory sink. The tileset root directory
// itself is created on the first write.
func NewDirectorySink(outputPath, rootDir, format string) *DirectorySink {
	return &DirectorySink{
		output:  outputPath,
		root:    rootDir,
		ext:     format,
		created: make(map[string]struct{}),
	}
}

// WriteTile implements output.TileSink.
func (s *DirectorySink) WriteTile(_ context.Context, tile *domain.RenderedTile) error {
	if s.finalized {
		return &domain.SinkError{Operation: "write", Sink: "directory", Err: domain.ErrSinkFinalized}
	}

	z := strconv.FormatUint(uint64(tile.Address.Z), 10)
	x := strconv.FormatUint(uint64(tile.Address.X), 10)
	dir := filepath.Join(s.output, s.root, z, x)

	prefix := z + "/" + x
	if _, ok := s.created[prefix]; !ok {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return &domain.SinkError{Operation: "write", Sink: "directory", Err: err}
		}
		s.created[prefix] = struct{}{}
	}

	name := fmt.Sprintf("%d.%s", tile.Address.Y, s.ext)
	if err := os.WriteFile(filepath.Join(dir, name), tile.Data, 0o640); err != nil {
		return &domain.SinkError{Operation: "write", Sink: "directory", Err: err}
	}
	return nil
}

// Finalize implements output.TileSink.
func (s *DirectorySink) Finalize(_ context.Context) error {
	s.finalized = true
	return nil
}
