package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Common SRID constants.
const (
	SRIDWGS84       = 4326 // WGS 84
	SRIDWebMercator = 3857 // Web Mercator
)

// Coordinate represents a geographic coordinate.
type Coordinate struct {
	X    float64 // Longitude or Easting
	Y    float64 // Latitude or Northing
	SRID int     // Spatial Reference ID
}

// String returns a string representation of the coordinate.
func (c Coordinate) String() string {
	return fmt.Sprintf("POINT(%f %f) SRID=%d", c.X, c.Y, c.SRID)
}

// Extent represents an axis-aligned geographic bounding box.
type Extent struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
	SRID int
}

// NewWGS84Extent creates a WGS84 (EPSG:4326) extent.
func NewWGS84Extent(minX, minY, maxX, maxY float64) Extent {
	return Extent{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY, SRID: SRIDWGS84}
}

// IsValid checks if the extent has valid dimensions.
func (e Extent) IsValid() bool {
	return e.MinX <= e.MaxX && e.MinY <= e.MaxY
}

// IsDegenerate returns true if the extent has no area.
func (e Extent) IsDegenerate() bool {
	return !e.IsValid() || e.Width() == 0 || e.Height() == 0
}

// Width returns the width of the extent.
func (e Extent) Width() float64 {
	return math.Abs(e.MaxX - e.MinX)
}

// Height returns the height of the extent.
func (e Extent) Height() float64 {
	return math.Abs(e.MaxY - e.MinY)
}

// Center returns the center coordinate of the extent.
func (e Extent) Center() Coordinate {
	return Coordinate{
		X:    (e.MinX + e.MaxX) / 2,
		Y:    (e.MinY + e.MaxY) / 2,
		SRID: e.SRID,
	}
}

// Contains checks if a coordinate is within the extent.
func (e Extent) Contains(c Coordinate) bool {
	return c.X >= e.MinX && c.X <= e.MaxX && c.Y >= e.MinY && c.Y <= e.MaxY
}

// Intersects reports whether the two extents share at least one point.
// Boundaries count: a zero-area extent lying on the edge of another
// still intersects it.
func (e Extent) Intersects(other Extent) bool {
	return e.MinX <= other.MaxX && e.MaxX >= other.MinX &&
		e.MinY <= other.MaxY && e.MaxY >= other.MinY
}

// Union returns the smallest extent covering both e and other.
func (e Extent) Union(other Extent) Extent {
	return Extent{
		MinX: math.Min(e.MinX, other.MinX),
		MinY: math.Min(e.MinY, other.MinY),
		MaxX: math.Max(e.MaxX, other.MaxX),
		MaxY: math.Max(e.MaxY, other.MaxY),
		SRID: e.SRID,
	}
}

// BoundsString returns the extent in "minx,miny,maxx,maxy" form, the
// format used by MBTiles metadata and the JSON sidecar.
func (e Extent) BoundsString() string {
	parts := []string{
		strconv.FormatFloat(e.MinX, 'f', -1, 64),
		strconv.FormatFloat(e.MinY, 'f', -1, 64),
		strconv.FormatFloat(e.MaxX, 'f', -1, 64),
		strconv.FormatFloat(e.MaxY, 'f', -1, 64),
	}
	return strings.Join(parts, ",")
}
