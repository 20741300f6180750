package route

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/planar"
	"github.com/twpayne/go-geos"

	"github.com/dpup/routepoi/internal/lib/geo"
)

// Segments used to approximate a quarter circle in joins and caps.
const quadrantSegments = 8

// Buffer is the corridor of all locations within a fixed distance of a route.
type Buffer struct {
	route    *Route
	distance float64
	planar   orb.Polygon
	polygon  orb.Polygon
}

// NewBuffer builds the corridor around r. The outline has round joins and
// round end caps; it is computed in the route's planar space and exposed in
// geographic coordinates.
func NewBuffer(r *Route, distanceMeters float64) (*Buffer, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil route", ErrInvalidRoute)
	}
	if !(distanceMeters > 0) || math.IsInf(distanceMeters, 0) {
		return nil, fmt.Errorf("%w: buffer distance must be positive, got %v", ErrInvalidParameter, distanceMeters)
	}

	r.ensurePlanar()
	shape, err := outline(r.planar, distanceMeters)
	if err != nil {
		return nil, err
	}
	polygon, _ := r.projector.ToGeographic(shape).(orb.Polygon)

	return &Buffer{
		route:    r,
		distance: distanceMeters,
		planar:   shape,
		polygon:  polygon,
	}, nil
}

// Route returns the buffered route.
func (b *Buffer) Route() *Route {
	return b.route
}

// Distance returns the buffer distance in meters.
func (b *Buffer) Distance() float64 {
	return b.distance
}

// Polygon returns the outline in geographic coordinates.
func (b *Buffer) Polygon() orb.Polygon {
	return b.polygon.Clone()
}

// PlanarPolygon returns the outline in the route's planar space.
func (b *Buffer) PlanarPolygon() orb.Polygon {
	return b.planar.Clone()
}

// Bound returns the geographic bounding box of the outline.
func (b *Buffer) Bound() orb.Bound {
	return b.polygon.Bound()
}

// Contains reports whether pt lies within the buffer distance of the route.
// The test uses the exact distance to the route, not the outline.
func (b *Buffer) Contains(pt geo.Point) bool {
	pos, err := b.route.Locate(pt)
	if err != nil {
		return false
	}
	return pos.Offset <= b.distance
}

// outline buffers the planar line with GEOS and returns a single polygon
// whose shell is counter-clockwise. A route that folds back on itself unions
// into one region, so every route vertex lies inside the shell.
func outline(line orb.LineString, d float64) (orb.Polygon, error) {
	pts := distinctPoints(line)
	var input orb.Geometry = orb.LineString(pts)
	if len(pts) == 1 {
		input = pts[0]
	}

	data, err := wkb.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode route: %w", err)
	}
	g, err := geos.NewGeomFromWKB(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load route into geos: %w", err)
	}
	decoded, err := wkb.Unmarshal(g.Buffer(d, quadrantSegments).ToWKB())
	if err != nil {
		return nil, fmt.Errorf("failed to decode buffer: %w", err)
	}

	var polygon orb.Polygon
	switch v := decoded.(type) {
	case orb.Polygon:
		polygon = v
	case orb.MultiPolygon:
		// Not expected for a connected line; keep the largest part.
		best := -1.0
		for _, part := range v {
			if a := planar.Area(part); a > best {
				best, polygon = a, part
			}
		}
	}
	if len(polygon) == 0 || len(polygon[0]) < 4 {
		return nil, fmt.Errorf("%w: empty buffer outline", geo.ErrGeometryDegenerate)
	}

	for i, ring := range polygon {
		want := orb.CCW
		if i > 0 {
			want = orb.CW
		}
		if ring.Orientation() != want {
			ring.Reverse()
		}
	}
	return polygon, nil
}

func distinctPoints(line orb.LineString) []orb.Point {
	pts := make([]orb.Point, 0, len(line))
	for _, p := range line {
		if len(pts) > 0 {
			prev := pts[len(pts)-1]
			if math.Hypot(p[0]-prev[0], p[1]-prev[1]) < 1e-9 {
				continue
			}
		}
		pts = append(pts, p)
	}
	return pts
}
