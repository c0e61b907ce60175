package sink

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/jobrunner/tilery/internal/domain"
)

//go:embed templates/viewer.html
var viewerTemplate string

// JSONSidecar is the metadata file written next to (or inside) a tileset.
type JSONSidecar struct {
	Name    string `json:"name"`
	Format  string `json:"format"`
	MinZoom int    `json:"minZoom"`
	MaxZoom int    `json:"maxZoom"`
	Bounds  string `json:"bounds"`
}

// WriteJSONSidecar writes the tileset metadata JSON file.
func WriteJSONSidecar(path, name, format string, minZoom, maxZoom int, bounds domain.Extent) error {
	info := JSONSidecar{
		Name:    name,
		Format:  strings.ToLower(format),
		MinZoom: minZoom,
		MaxZoom: maxZoom,
		Bounds:  bounds.BoundsString(),
	}
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o640)
}

// WriteMapurl writes a .mapurl file describing how to address the tile
// tree. The type is "tms" or "google" depending on the row convention.
func WriteMapurl(path, rootDir string, minZoom, maxZoom int, center domain.Coordinate, scheme domain.Scheme) error {
	server := "google"
	if scheme == domain.SchemeTMS {
		server = "tms"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "url=%s/ZZZ/XXX/YYY.png\n", rootDir)
	fmt.Fprintf(&b, "minzoom=%d\n", minZoom)
	fmt.Fprintf(&b, "maxzoom=%d\n", maxZoom)
	fmt.Fprintf(&b, "center=%f %f\n", center.X, center.Y)
	fmt.Fprintf(&b, "type=%s\n", server)
	return os.WriteFile(path, []byte(b.String()), 0o640)
}

// ViewerData parameterizes the embedded HTML viewer.
type ViewerData struct {
	TilesDir    string
	TilesExt    string
	TilesetName string
	TMS         bool
	CenterX     float64
	CenterY     float64
	AvgZoom     int
	MaxZoom     int
}

// WriteViewer writes a self-contained Leaflet viewer page for a
// directory tileset.
func WriteViewer(path string, data ViewerData) error {
	tmpl, err := template.New("viewer").Parse(viewerTemplate)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return tmpl.Execute(f, data)
}
