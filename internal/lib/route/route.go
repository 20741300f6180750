package route

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/paulmach/orb"

	"github.com/dpup/routepoi/internal/lib/geo"
)

var (
	// ErrInvalidRoute is returned for routes with fewer than two points or
	// coordinates outside WGS84 bounds.
	ErrInvalidRoute = errors.New("invalid route")

	// ErrInvalidParameter is returned for non-positive buffer or chunk sizes,
	// negative overlaps and inverted arc-length ranges.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Route is an immutable polyline used as a linear reference. Its planar form
// is computed once, on first use, with the route's projector.
type Route struct {
	points    []geo.Point
	projector *geo.Projector

	once       sync.Once
	planar     orb.LineString
	cumulative []float64
}

// Position describes where a point sits relative to the route.
type Position struct {
	ArcLength float64   // meters from the start of the route
	Offset    float64   // perpendicular distance from the route in meters
	Segment   int       // index of the closest segment
	Closest   orb.Point // closest route location, planar
}

// FromPoints builds a route from an ordered point sequence. A projector is
// selected from the route's extent.
func FromPoints(points []geo.Point) (*Route, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points, got %d", ErrInvalidRoute, len(points))
	}
	for i, p := range points {
		if !geo.IsValid(p) {
			return nil, fmt.Errorf("%w: point %d (%v, %v) out of range", ErrInvalidRoute, i, p.Latitude, p.Longitude)
		}
	}

	cp := append([]geo.Point(nil), points...)
	return newWithProjector(cp, geo.ProjectorFor(cp)), nil
}

func newWithProjector(points []geo.Point, projector *geo.Projector) *Route {
	return &Route{points: points, projector: projector}
}

// Points returns a copy of the route's vertices.
func (r *Route) Points() []geo.Point {
	return append([]geo.Point(nil), r.points...)
}

// NumPoints returns the number of vertices.
func (r *Route) NumPoints() int {
	return len(r.points)
}

// Projector returns the projection shared by everything derived from this route.
func (r *Route) Projector() *geo.Projector {
	return r.projector
}

// LineString returns the route in geographic coordinates.
func (r *Route) LineString() orb.LineString {
	return geo.LineString(r.points)
}

// Planar returns a copy of the route in planar coordinates.
func (r *Route) Planar() orb.LineString {
	r.ensurePlanar()
	return r.planar.Clone()
}

// Length returns the planar length of the route in meters.
func (r *Route) Length() float64 {
	r.ensurePlanar()
	return r.cumulative[len(r.cumulative)-1]
}

// GeodesicLength returns the great-circle length of the route in meters.
func (r *Route) GeodesicLength() float64 {
	return geo.PathLength(r.points)
}

func (r *Route) ensurePlanar() {
	r.once.Do(func() {
		r.planar = make(orb.LineString, len(r.points))
		r.cumulative = make([]float64, len(r.points))
		for i, p := range r.points {
			// Points are range-checked on construction, so projection cannot fail.
			xy, _ := r.projector.Forward(p)
			r.planar[i] = xy
			if i > 0 {
				prev := r.planar[i-1]
				r.cumulative[i] = r.cumulative[i-1] + math.Hypot(xy[0]-prev[0], xy[1]-prev[1])
			}
		}
	})
}

// ProjectPointToArcLength returns the arc length, in meters, of the route
// location closest to pt. The result is clamped to [0, Length()].
func (r *Route) ProjectPointToArcLength(pt geo.Point) (float64, error) {
	pos, err := r.Locate(pt)
	if err != nil {
		return 0, err
	}
	return pos.ArcLength, nil
}

// Locate finds the closest route location to pt. When two segments are
// equally close the earlier one wins.
func (r *Route) Locate(pt geo.Point) (Position, error) {
	xy, err := r.projector.Forward(pt)
	if err != nil {
		return Position{}, err
	}
	pos := r.LocatePlanar(xy)
	if math.IsNaN(pos.ArcLength) || math.IsNaN(pos.Offset) {
		return Position{}, fmt.Errorf("%w: no closest location for (%v, %v)", geo.ErrGeometryDegenerate, pt.Latitude, pt.Longitude)
	}
	return pos, nil
}

// LocatePlanar is Locate for a point already in the route's planar space.
func (r *Route) LocatePlanar(xy orb.Point) Position {
	r.ensurePlanar()

	best := Position{Offset: math.Inf(1)}
	for i := 0; i < len(r.planar)-1; i++ {
		a, b := r.planar[i], r.planar[i+1]
		dx, dy := b[0]-a[0], b[1]-a[1]
		segLen := r.cumulative[i+1] - r.cumulative[i]

		t := 0.0
		if lenSq := dx*dx + dy*dy; lenSq > 0 {
			t = ((xy[0]-a[0])*dx + (xy[1]-a[1])*dy) / lenSq
			t = math.Max(0, math.Min(1, t))
		}

		closest := orb.Point{a[0] + t*dx, a[1] + t*dy}
		d := math.Hypot(xy[0]-closest[0], xy[1]-closest[1])
		if d < best.Offset {
			best = Position{
				ArcLength: r.cumulative[i] + t*segLen,
				Offset:    d,
				Segment:   i,
				Closest:   closest,
			}
		}
	}

	if math.IsInf(best.Offset, 1) {
		return Position{ArcLength: math.NaN(), Offset: math.NaN()}
	}
	best.ArcLength = math.Max(0, math.Min(r.Length(), best.ArcLength))
	return best
}

// PointAtArcLength interpolates the route location at d meters from the
// start. d is clamped to the route.
func (r *Route) PointAtArcLength(d float64) geo.Point {
	return r.projector.Inverse(r.planarAt(d))
}

func (r *Route) planarAt(d float64) orb.Point {
	r.ensurePlanar()
	d = math.Max(0, math.Min(r.Length(), d))

	i := sort.SearchFloat64s(r.cumulative, d)
	if i == 0 {
		return r.planar[0]
	}
	if i >= len(r.cumulative) {
		return r.planar[len(r.planar)-1]
	}

	a, b := r.planar[i-1], r.planar[i]
	segLen := r.cumulative[i] - r.cumulative[i-1]
	if segLen == 0 {
		return b
	}
	t := (d - r.cumulative[i-1]) / segLen
	return orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
}

// SliceByArcLength returns the sub-route made of every original segment
// touching [start, end]. Vertices are not interpolated, so the sub-route may
// extend slightly past the requested span. The sub-route shares this route's
// projector.
func (r *Route) SliceByArcLength(start, end float64) (*Route, error) {
	if math.IsNaN(start) || math.IsNaN(end) {
		return nil, fmt.Errorf("%w: NaN arc length", ErrInvalidParameter)
	}
	r.ensurePlanar()

	start = math.Max(0, start)
	end = math.Min(r.Length(), end)
	if start > end {
		return nil, fmt.Errorf("%w: slice start %.1f after end %.1f", ErrInvalidParameter, start, end)
	}

	first, last := -1, -1
	for i := 0; i < len(r.points)-1; i++ {
		if r.cumulative[i+1] >= start && r.cumulative[i] <= end {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return nil, fmt.Errorf("%w: no segment within [%.1f, %.1f]", ErrInvalidParameter, start, end)
	}

	points := append([]geo.Point(nil), r.points[first:last+2]...)
	return newWithProjector(points, r.projector), nil
}
