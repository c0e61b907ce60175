package application

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jobrunner/tilery/internal/ports/output"
)

// RestrictionResult is the outcome of a layer restriction check.
type RestrictionResult struct {
	Skipped   []output.Layer // layers removed from the run
	Remaining []output.Layer // layers the run proceeds with
	Message   string         // human-readable explanation, empty if nothing skipped
}

// LayerRestriction vets the planned layer set before rendering starts.
type LayerRestriction interface {
	Check(layers []output.Layer, tileCount int) RestrictionResult
}

// MaxOpenStreetMapTiles is the largest tile count for which
// OpenStreetMap-backed layers may participate in a run, per the OSM
// Foundation tile usage policy on bulk downloading.
const MaxOpenStreetMapTiles = 5000

// OpenStreetMapRestriction drops OSM-backed layers from runs large
// enough to constitute bulk downloading.
type OpenStreetMapRestriction struct {
	// MaxTiles overrides MaxOpenStreetMapTiles when positive.
	MaxTiles int
}

// Check implements LayerRestriction.
func (r OpenStreetMapRestriction) Check(layers []output.Layer, tileCount int) RestrictionResult {
	maxTiles := r.MaxTiles
	if maxTiles <= 0 {
		maxTiles = MaxOpenStreetMapTiles
	}
	if tileCount <= maxTiles {
		return RestrictionResult{Remaining: layers}
	}

	var skipped, remaining []output.Layer
	for _, layer := range layers {
		if isOpenStreetMapSource(layer.Source()) {
			skipped = append(skipped, layer)
		} else {
			remaining = append(remaining, layer)
		}
	}
	if len(skipped) == 0 {
		return RestrictionResult{Remaining: layers}
	}

	names := make([]string, len(skipped))
	for i, l := range skipped {
		names[i] = l.Name()
	}
	message := fmt.Sprintf(
		"skipped OpenStreetMap layers (%s): rendering %d tiles would violate the OSM tile usage policy; reduce the maximum zoom level or shrink the extent",
		strings.Join(names, ", "), tileCount,
	)
	return RestrictionResult{Skipped: skipped, Remaining: remaining, Message: message}
}

// isOpenStreetMapSource reports whether a layer source points at the
// public OpenStreetMap tile infrastructure.
func isOpenStreetMapSource(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "openstreetmap.org" || strings.HasSuffix(host, ".openstreetmap.org") ||
		host == "osm.org" || strings.HasSuffix(host, ".osm.org")
}
