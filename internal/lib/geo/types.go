package geo

import (
	"errors"

	"github.com/paulmach/orb"
)

// ErrGeometryDegenerate is returned when a coordinate or geometry cannot be
// projected or measured (non-finite values, out of range coordinates, empty
// shapes).
var ErrGeometryDegenerate = errors.New("degenerate geometry")

// Point represents a geographic coordinate
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Polyline represents an encoded polyline with optional decoded points
type Polyline struct {
	EncodedPolyline string  `json:"encoded_polyline"`
	Points          []Point `json:"points"`
}

// Orb returns the point as an orb.Point (X = longitude, Y = latitude).
func (p Point) Orb() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// FromOrb converts an orb.Point in lon/lat order.
func FromOrb(p orb.Point) Point {
	return Point{Latitude: p.Lat(), Longitude: p.Lon()}
}

// Zone identifies a UTM-style transverse Mercator zone.
type Zone struct {
	Number int  `json:"number"`
	North  bool `json:"north"`
}
