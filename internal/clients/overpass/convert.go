package overpass

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/dpup/routepoi/internal/lib/poi"
)

// Candidate converts the element. ok is false when the element carries no
// usable geometry.
func (e Element) Candidate() (poi.Candidate, bool) {
	g := e.geometry()
	if g == nil {
		return poi.Candidate{}, false
	}

	attrs := poi.FromTags(e.Tags)
	category, subtype, _ := poi.Classify(attrs)
	delete(attrs, "name")
	return poi.Candidate{
		ID:         fmt.Sprintf("%s/%d", e.Type, e.ID),
		Name:       e.Tags["name"],
		Category:   category,
		Subtype:    subtype,
		Geometry:   g,
		Attributes: attrs,
	}, true
}

func (e Element) geometry() orb.Geometry {
	switch e.Type {
	case "node":
		if e.Lat != nil && e.Lon != nil {
			return orb.Point{*e.Lon, *e.Lat}
		}
	case "way":
		if g := wayGeometry(e.Geometry); g != nil {
			return g
		}
	case "relation":
		if rings := assembleRings(e.outerWays()); len(rings) > 0 {
			mp := make(orb.MultiPolygon, len(rings))
			for i, r := range rings {
				mp[i] = orb.Polygon{r}
			}
			return mp
		}
	}
	return e.fallbackPoint()
}

func (e Element) fallbackPoint() orb.Geometry {
	switch {
	case e.Center != nil:
		return orb.Point{e.Center.Lon, e.Center.Lat}
	case e.Bounds != nil:
		return orb.Point{(e.Bounds.MinLon + e.Bounds.MaxLon) / 2, (e.Bounds.MinLat + e.Bounds.MaxLat) / 2}
	}
	return nil
}

func (e Element) outerWays() [][]orb.Point {
	var ways [][]orb.Point
	for _, m := range e.Members {
		if m.Type != "way" || (m.Role != "outer" && m.Role != "") {
			continue
		}
		if pts := toPoints(m.Geometry); len(pts) >= 2 {
			ways = append(ways, pts)
		}
	}
	return ways
}

// wayGeometry is a polygon for closed ways and a line string otherwise.
func wayGeometry(coords []LatLon) orb.Geometry {
	pts := toPoints(coords)
	switch {
	case len(pts) >= 4 && pts[0] == pts[len(pts)-1]:
		return orb.Polygon{orb.Ring(pts)}
	case len(pts) >= 2:
		return orb.LineString(pts)
	case len(pts) == 1:
		return pts[0]
	}
	return nil
}

func toPoints(coords []LatLon) []orb.Point {
	pts := make([]orb.Point, 0, len(coords))
	for _, c := range coords {
		pts = append(pts, orb.Point{c.Lon, c.Lat})
	}
	return pts
}

// assembleRings joins way fragments that share end nodes into closed rings.
// Fragments that never close are dropped.
func assembleRings(ways [][]orb.Point) []orb.Ring {
	remaining := make([][]orb.Point, len(ways))
	copy(remaining, ways)

	var rings []orb.Ring
	for len(remaining) > 0 {
		current := append([]orb.Point(nil), remaining[0]...)
		remaining = remaining[1:]

		for !isClosed(current) {
			joined := false
			for i, w := range remaining {
				first, last := current[0], current[len(current)-1]
				switch {
				case last == w[0]:
					current = append(current, w[1:]...)
				case last == w[len(w)-1]:
					current = append(current, reversed(w)[1:]...)
				case first == w[len(w)-1]:
					current = append(append([]orb.Point(nil), w[:len(w)-1]...), current...)
				case first == w[0]:
					current = append(reversed(w)[:len(w)-1], current...)
				default:
					continue
				}
				remaining = append(remaining[:i:i], remaining[i+1:]...)
				joined = true
				break
			}
			if !joined {
				break
			}
		}

		if isClosed(current) && len(current) >= 4 {
			rings = append(rings, orb.Ring(current))
		}
	}
	return rings
}

func isClosed(pts []orb.Point) bool {
	return len(pts) >= 2 && pts[0] == pts[len(pts)-1]
}

func reversed(pts []orb.Point) []orb.Point {
	out := make([]orb.Point, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}
