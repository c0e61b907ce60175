// Package domain contains the core business entities and value objects.
package domain

import (
	"fmt"
	"math"
)

// Scheme identifies the tile row numbering convention.
type Scheme int

// Supported row numbering conventions.
const (
	SchemeXYZ Scheme = iota // row 0 at the north edge (slippy map)
	SchemeTMS               // row 0 at the south edge
)

// String returns the conventional name of the scheme.
func (s Scheme) String() string {
	if s == SchemeTMS {
		return "tms"
	}
	return "xyz"
}

// TileAddress identifies a single tile in the pyramid.
// Invariant: X and Y are below 2^Z.
type TileAddress struct {
	Z      uint32
	X      uint32
	Y      uint32
	Scheme Scheme
}

// RootTile returns the single zoom-0 tile covering the whole globe.
func RootTile(scheme Scheme) TileAddress {
	return TileAddress{Scheme: scheme}
}

// Children returns the four tiles subdividing t at zoom Z+1,
// in column-major order.
func (t TileAddress) Children() [4]TileAddress {
	var children [4]TileAddress
	i := 0
	for x := 2 * t.X; x <= 2*t.X+1; x++ {
		for y := 2 * t.Y; y <= 2*t.Y+1; y++ {
			children[i] = TileAddress{Z: t.Z + 1, X: x, Y: y, Scheme: t.Scheme}
			i++
		}
	}
	return children
}

// WithScheme returns the same tile addressed under the given scheme.
// Converting between XYZ and TMS flips the row.
func (t TileAddress) WithScheme(s Scheme) TileAddress {
	if s == t.Scheme {
		return t
	}
	return TileAddress{
		Z:      t.Z,
		X:      t.X,
		Y:      uint32(1)<<t.Z - 1 - t.Y,
		Scheme: s,
	}
}

// ToExtent returns the WGS84 bounding box covered by the tile.
// Longitude is linear in the column; latitude follows the inverse
// Gudermannian of the row, sign-flipped for TMS addressing. The cells of
// one zoom level tile the full globe without gaps or overlaps.
func (t TileAddress) ToExtent() Extent {
	n := math.Exp2(float64(t.Z))
	sign := 1.0
	if t.Scheme == SchemeTMS {
		sign = -1.0
	}

	lonWest := float64(t.X)/n*360.0 - 180.0
	lonEast := float64(t.X+1)/n*360.0 - 180.0
	lat1 := sign * rowEdgeLatitude(float64(t.Y), n)
	lat2 := sign * rowEdgeLatitude(float64(t.Y+1), n)

	return Extent{
		MinX: lonWest,
		MinY: math.Min(lat1, lat2),
		MaxX: lonEast,
		MaxY: math.Max(lat1, lat2),
		SRID: SRIDWGS84,
	}
}

// rowEdgeLatitude returns the latitude in degrees of the edge between XYZ
// rows y-1 and y at a zoom level with n rows.
func rowEdgeLatitude(y, n float64) float64 {
	return math.Atan(math.Sinh(math.Pi*(1-2*y/n))) * 180.0 / math.Pi
}

// String returns the tile in z/x/y form.
func (t TileAddress) String() string {
	return fmt.Sprintf("%d/%d/%d (%s)", t.Z, t.X, t.Y, t.Scheme)
}
