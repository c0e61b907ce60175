package sink

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/jobrunner/tilery/internal/domain"
)

// ngmRootDir is the fixed tile root inside an NGM archive.
const ngmRootDir = "Mapnik"

// IndexedArchiveSink is an archive sink that additionally tracks, per
// zoom level, the min/max column and row written, and finalizes by
// writing a JSON manifest entry before closing the container. It
// composes a plain ArchiveSink: the extension only adds observation and
// one extra write, it never overrides the archive behavior.
type IndexedArchiveSink struct {
	inner  *ArchiveSink
	name   string
	levels map[uint32]*levelBounds
}

type levelBounds struct {
	minX, minY uint32
	maxX, maxY uint32
}

// ngmManifest mirrors the NGM archive index format.
type ngmManifest struct {
	CacheSizeMultiply  int                   `json:"cache_size_multiply"`
	Levels             []ngmLevel            `json:"levels"`
	MaxLevel           uint32                `json:"max_level"`
	MinLevel           uint32                `json:"min_level"`
	Name               string                `json:"name"`
	RendererProperties ngmRendererProperties `json:"renderer_properties"`
	TMSType            int                   `json:"tms_type"`
	Type               int                   `json:"type"`
	Visible            bool                  `json:"visible"`
}

type ngmLevel struct {
	Level    uint32 `json:"level"`
	BBoxMaxX uint32 `json:"bbox_maxx"`
	BBoxMaxY uint32 `json:"bbox_maxy"`
	BBoxMinX uint32 `json:"bbox_minx"`
	BBoxMinY uint32 `json:"bbox_miny"`
}

type ngmRendererProperties struct {
	Alpha        int    `json:"alpha"`
	Antialias    bool   `json:"antialias"`
	Brightness   int    `json:"brightness"`
	Contrast     int    `json:"contrast"`
	Dither       bool   `json:"dither"`
	FilterBitmap bool   `json:"filterbitmap"`
	Greyscale    bool   `json:"greyscale"`
	Type         string `json:"type"`
}

// NewIndexedArchiveSink creates an NGM archive sink. Tiles live under the
// fixed "Mapnik" root; the given name only appears in the manifest.
func NewIndexedArchiveSink(path, name, format string) (*IndexedArchiveSink, error) {
	inner, err := NewArchiveSink(path, ngmRootDir, format)
	if err != nil {
		return nil, err
	}
	return &IndexedArchiveSink{
		inner:  inner,
		name:   name,
		levels: make(map[uint32]*levelBounds),
	}, nil
}

// WriteTile implements output.TileSink.
func (s *IndexedArchiveSink) WriteTile(ctx context.Context, tile *domain.RenderedTile) error {
	if err := s.inner.WriteTile(ctx, tile); err != nil {
		return err
	}

	b, ok := s.levels[tile.Address.Z]
	if !ok {
		s.levels[tile.Address.Z] = &levelBounds{
			minX: tile.Address.X, maxX: tile.Address.X,
			minY: tile.Address.Y, maxY: tile.Address.Y,
		}
		return nil
	}
	b.minX = min(b.minX, tile.Address.X)
	b.maxX = max(b.maxX, tile.Address.X)
	b.minY = min(b.minY, tile.Address.Y)
	b.maxY = max(b.maxY, tile.Address.Y)
	return nil
}

// Finalize implements output.TileSink. The manifest is written into the
// archive before the container closes. An empty run produces a plain
// empty archive with no manifest.
func (s *IndexedArchiveSink) Finalize(ctx context.Context) error {
	if len(s.levels) > 0 {
		manifest := s.buildManifest()
		data, err := json.Marshal(manifest)
		if err != nil {
			return &domain.SinkError{Operation: "finalize", Sink: "ngm", Err: err}
		}
		if err := s.inner.writeEntry(ngmRootDir+".json", data); err != nil {
			return &domain.SinkError{Operation: "finalize", Sink: "ngm", Err: err}
		}
	}
	return s.inner.Finalize(ctx)
}

func (s *IndexedArchiveSink) buildManifest() ngmManifest {
	m := ngmManifest{
		Levels: make([]ngmLevel, 0, len(s.levels)),
		Name:   s.name,
		RendererProperties: ngmRendererProperties{
			Alpha:        255,
			Antialias:    true,
			Brightness:   0,
			Contrast:     1,
			Dither:       true,
			FilterBitmap: true,
			Greyscale:    false,
			Type:         "tms_renderer",
		},
		TMSType: 2,
		Type:    32,
		Visible: true,
	}

	first := true
	for z, b := range s.levels {
		if first {
			m.MinLevel, m.MaxLevel = z, z
			first = false
		} else {
			m.MinLevel = min(m.MinLevel, z)
			m.MaxLevel = max(m.MaxLevel, z)
		}
		m.Levels = append(m.Levels, ngmLevel{
			Level:    z,
			BBoxMinX: b.minX,
			BBoxMaxX: b.maxX,
			BBoxMinY: b.minY,
			BBoxMaxY: b.maxY,
		})
	}
	sort.Slice(m.Levels, func(i, j int) bool { return m.Levels[i].Level < m.Levels[j].Level })
	return m
}
