package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/wroge/wgs84"
)

// Latitudes closer to the poles than this are clamped before projecting.
const maxProjectedLatitude = 89.9999

// String renders the zone as number plus hemisphere letter, e.g. "10N".
func (z Zone) String() string {
	if z.North {
		return fmt.Sprintf("%dN", z.Number)
	}
	return fmt.Sprintf("%dS", z.Number)
}

// EPSG returns the EPSG code of the equivalent WGS84 / UTM CRS.
func (z Zone) EPSG() int {
	if z.North {
		return 32600 + z.Number
	}
	return 32700 + z.Number
}

// CentralMeridian returns the zone's central meridian in degrees.
func (z Zone) CentralMeridian() float64 {
	return float64(z.Number)*6 - 183
}

// ZoneFor returns the UTM zone containing the point, including the Norway
// and Svalbard grid exceptions.
func ZoneFor(p Point) Zone {
	lon := wrapDegrees(p.Longitude)
	lat := p.Latitude

	n := int(math.Floor((lon+180)/6)) + 1
	if n < 1 {
		n = 1
	}
	if n > 60 {
		n = 60
	}

	if lat >= 56 && lat < 64 && lon >= 3 && lon < 12 {
		n = 32
	}
	if lat >= 72 && lat < 84 {
		switch {
		case lon >= 0 && lon < 9:
			n = 31
		case lon >= 9 && lon < 21:
			n = 33
		case lon >= 21 && lon < 33:
			n = 35
		case lon >= 33 && lon < 42:
			n = 37
		}
	}

	return Zone{Number: n, North: lat >= 0}
}

// SelectZone picks the best-fit zone for the bounding extent of points.
// Extents wider than 180 degrees of longitude are assumed to cross the
// antimeridian and use the circular mean longitude instead of the box center.
func SelectZone(points []Point) Zone {
	var (
		count                          int
		minLat, maxLat, minLon, maxLon float64
		sumSin, sumCos                 float64
	)
	for _, p := range points {
		if !IsValid(p) {
			continue
		}
		if count == 0 {
			minLat, maxLat, minLon, maxLon = p.Latitude, p.Latitude, p.Longitude, p.Longitude
		}
		minLat = math.Min(minLat, p.Latitude)
		maxLat = math.Max(maxLat, p.Latitude)
		minLon = math.Min(minLon, p.Longitude)
		maxLon = math.Max(maxLon, p.Longitude)
		rad := p.Longitude * math.Pi / 180
		sumSin += math.Sin(rad)
		sumCos += math.Cos(rad)
		count++
	}
	if count == 0 {
		return Zone{Number: 31, North: true}
	}

	center := Point{Latitude: (minLat + maxLat) / 2, Longitude: (minLon + maxLon) / 2}
	if maxLon-minLon > 180 {
		center.Longitude = math.Atan2(sumSin, sumCos) * 180 / math.Pi
	}
	return ZoneFor(center)
}

// Projector converts between geographic coordinates and planar meters in a
// single WGS84 / UTM zone. It is immutable and safe for concurrent use.
type Projector struct {
	zone    Zone
	lon0    float64
	toUTM   wgs84.Func
	fromUTM wgs84.Func
}

// NewProjector creates a projector for the given zone.
func NewProjector(zone Zone) *Projector {
	utm := wgs84.UTM(float64(zone.Number), zone.North)
	return &Projector{
		zone:    zone,
		lon0:    zone.CentralMeridian(),
		toUTM:   wgs84.LonLat().To(utm),
		fromUTM: utm.To(wgs84.LonLat()),
	}
}

// ProjectorFor selects a zone for the points and returns its projector.
func ProjectorFor(points []Point) *Projector {
	return NewProjector(SelectZone(points))
}

// Zone returns the projector's zone.
func (p *Projector) Zone() Zone {
	return p.zone
}

// Forward projects a geographic point to planar (easting, northing) meters.
func (p *Projector) Forward(pt Point) (orb.Point, error) {
	xy, ok := p.forward(pt.Orb())
	if !ok {
		return orb.Point{}, fmt.Errorf("%w: cannot project (%v, %v)", ErrGeometryDegenerate, pt.Latitude, pt.Longitude)
	}
	return xy, nil
}

// Inverse converts planar meters back to a geographic point.
func (p *Projector) Inverse(xy orb.Point) Point {
	return FromOrb(p.inverse(xy))
}

// ToPlanar projects any geometry into the zone's planar space. The input is
// not modified.
func (p *Projector) ToPlanar(g orb.Geometry) (orb.Geometry, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil geometry", ErrGeometryDegenerate)
	}

	failed := false
	out := project.Geometry(orb.Clone(g), func(pt orb.Point) orb.Point {
		xy, ok := p.forward(pt)
		if !ok {
			failed = true
		}
		return xy
	})
	if failed {
		return nil, fmt.Errorf("%w: %s contains unprojectable coordinates", ErrGeometryDegenerate, g.GeoJSONType())
	}
	return out, nil
}

// ToGeographic converts a planar geometry back to lon/lat. The input is not
// modified.
func (p *Projector) ToGeographic(g orb.Geometry) orb.Geometry {
	if g == nil {
		return nil
	}
	return project.Geometry(orb.Clone(g), p.inverse)
}

func (p *Projector) forward(pt orb.Point) (orb.Point, bool) {
	lon, lat := pt[0], pt[1]
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return orb.Point{math.NaN(), math.NaN()}, false
	}
	if lat < -90 || lat > 90 {
		return orb.Point{math.NaN(), math.NaN()}, false
	}
	lat = math.Max(-maxProjectedLatitude, math.Min(maxProjectedLatitude, lat))

	// Keep longitudes within half a turn of the central meridian so routes
	// crossing the antimeridian stay continuous.
	lon = p.lon0 + wrapDegrees(lon-p.lon0)

	x, y, _ := p.toUTM(lon, lat, 0)
	if math.IsNaN(x) || math.IsNaN(y) {
		return orb.Point{math.NaN(), math.NaN()}, false
	}
	return orb.Point{x, y}, true
}

func (p *Projector) inverse(xy orb.Point) orb.Point {
	lon, lat, _ := p.fromUTM(xy[0], xy[1], 0)
	return orb.Point{wrapDegrees(lon), lat}
}

// wrapDegrees maps a longitude into [-180, 180).
func wrapDegrees(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
