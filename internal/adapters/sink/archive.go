package sink

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jobrunner/tilery/internal/domain"
)

// ArchiveSink writes tiles as entries of a single Zip container at
// <root>/<z>/<x>/<y>.<ext>. Each payload is staged through one reusable
// scratch buffer, which makes concurrent writes unsafe by construction;
// the sink contract is single-writer anyway.
type ArchiveSink struct {
	file *os.File
	zw   *zip.Writer
	root string
	ext  string

	scratch   bytes.Buffer
	finalized bool
}

// NewArchiveSink creates the archive file and an empty container.
func NewArchiveSink(path, rootDir, format string) (*ArchiveSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &domain.SinkError{Operation: "open", Sink: "archive", Err: err}
	}
	return &ArchiveSink{
		file: f,
		zw:   zip.NewWriter(f),
		root: rootDir,
		ext:  format,
	}, nil
}

// WriteTile implements output.TileSink.
func (s *ArchiveSink) WriteTile(_ context.Context, tile *domain.RenderedTile) error {
	if s.finalized {
		return &domain.SinkError{Operation: "write", Sink: "archive", Err: domain.ErrSinkFinalized}
	}

	entry := fmt.Sprintf("%s/%d/%d/%d.%s", s.root, tile.Address.Z, tile.Address.X, tile.Address.Y, s.ext)
	w, err := s.zw.Create(entry)
	if err != nil {
		return &domain.SinkError{Operation: "write", Sink: "archive", Err: err}
	}

	s.scratch.Reset()
	s.scratch.Write(tile.Data)
	if _, err := s.scratch.WriteTo(w); err != nil {
		return &domain.SinkError{Operation: "write", Sink: "archive", Err: err}
	}
	return nil
}

// writeEntry adds a non-tile entry to the archive. Used by the indexed
// variant for its manifest.
func (s *ArchiveSink) writeEntry(name string, data []byte) error {
	if s.finalized {
		return domain.ErrSinkFinalized
	}
	w, err := s.zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Finalize implements output.TileSink. It closes the container and
// discards the scratch buffer.
func (s *ArchiveSink) Finalize(_ context.Context) error {
	if s.finalized {
		return nil
	}
	s.finalized = true
	s.scratch = bytes.Buffer{}

	err := s.zw.Close()
	if cerr := s.file.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if err != nil {
		return &domain.SinkError{Operation: "finalize", Sink: "archive", Err: err}
	}
	return nil
}
