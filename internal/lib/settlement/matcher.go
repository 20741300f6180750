package settlement

import (
	"math"
	"strconv"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/dpup/routepoi/internal/lib/geo"
	"github.com/dpup/routepoi/internal/lib/poi"
	"github.com/dpup/routepoi/internal/lib/route"
	"github.com/dpup/routepoi/internal/logging"
)

// Unknown is used for every attribute that could not be resolved.
const Unknown = "Unknown"

// Match sources
const (
	SourceBoundary = "boundary"
	SourceTags     = "tags"
)

// Tag keys consulted, in order, when no boundary contains the point.
var (
	localityTags = []string{"addr:county", "is_in:county", "is_in", "addr:state", "is_in:state", "addr:district"}
	regionTags   = []string{"addr:state", "is_in:state", "is_in:region"}
	countryTags  = []string{"addr:country", "is_in:country"}
)

// Match is the settlement nearest to a point plus its administrative context.
type Match struct {
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	DistanceKm float64 `json:"distance_km"`
	Locality   string  `json:"locality"`
	Region     string  `json:"region"`
	Country    string  `json:"country"`
	Source     string  `json:"source,omitempty"`
}

// Matcher resolves the nearest settlement and containing boundaries for
// points. It is immutable after construction and safe for concurrent use.
type Matcher struct {
	projector   *geo.Projector
	settlements []*entry
	tree        *rtreego.Rtree
	boundaries  []boundary
	log         logging.Logger
}

type entry struct {
	index     int
	candidate poi.Candidate
	xy        orb.Point
}

func (e *entry) Bounds() rtreego.Rect {
	return rtreego.Point{e.xy[0], e.xy[1]}.ToRect(0.01)
}

type boundary struct {
	level   int
	name    string
	polygon orb.MultiPolygon
	bound   orb.Bound
}

// NewMatcher indexes settlements by their planar location under proj.
// Settlements or boundaries with unusable geometry are skipped with a warning.
func NewMatcher(proj *geo.Projector, settlements, boundaries []poi.Candidate, log logging.Logger) *Matcher {
	m := &Matcher{
		projector: proj,
		tree:      rtreego.NewTree(2, 25, 50),
		log:       logging.OrNop(log),
	}

	for i, c := range settlements {
		pt, err := c.RepresentativePoint(proj)
		if err == nil {
			var xy orb.Point
			if xy, err = proj.Forward(pt); err == nil {
				e := &entry{index: i, candidate: c, xy: xy}
				m.settlements = append(m.settlements, e)
				m.tree.Insert(e)
				continue
			}
		}
		m.log.Warnw("skipping settlement", "id", c.ID, "name", c.Name, "error", err)
	}

	for _, c := range boundaries {
		b, ok := toBoundary(c)
		if !ok {
			m.log.Warnw("skipping boundary", "id", c.ID, "name", c.Name)
			continue
		}
		m.boundaries = append(m.boundaries, b)
	}

	return m
}

// Len returns the number of indexed settlements.
func (m *Matcher) Len() int {
	return len(m.settlements)
}

// Nearest returns the nearest settlement to pt. Containing boundaries take
// precedence for locality, region and country; the settlement's own tags only
// fill attributes no boundary resolved. Without settlements the name is Unknown and the distance 0.
func (m *Matcher) Nearest(pt geo.Point) Match {
	match := Match{Name: Unknown, Locality: Unknown, Region: Unknown, Country: Unknown}
	if m.applyBoundaries(pt, &match) {
		match.Source = SourceBoundary
	}

	if len(m.settlements) == 0 {
		return match
	}
	xy, err := m.projector.Forward(pt)
	if err != nil {
		m.log.Warnw("nearest settlement unavailable", "lat", pt.Latitude, "lon", pt.Longitude, "error", err)
		return match
	}

	nearest, distance := m.nearest(xy)
	match.Name = nearest.candidate.DisplayName()
	match.Category = nearest.candidate.Subtype
	match.DistanceKm = route.RoundKm(distance)

	attrs := nearest.candidate.Attributes
	usedTags := false
	fill := func(field *string, keys []string) {
		if *field != Unknown {
			return
		}
		if v, ok := attrs.FirstText(keys...); ok {
			*field = v
			usedTags = true
		}
	}
	fill(&match.Locality, localityTags)
	fill(&match.Region, regionTags)
	fill(&match.Country, countryTags)
	if usedTags && match.Source == "" {
		match.Source = SourceTags
	}

	return match
}

// nearest finds the closest settlement, preferring the earliest input on ties.
// The tree only indexes boxes, so every entry within the first hit's distance
// is rescanned exactly.
func (m *Matcher) nearest(xy orb.Point) (*entry, float64) {
	first := m.tree.NearestNeighbor(rtreego.Point{xy[0], xy[1]}).(*entry)
	best, bestDist := first, distance(first.xy, xy)

	reach := bestDist + 0.05
	box, err := rtreego.NewRectFromPoints(
		rtreego.Point{xy[0] - reach, xy[1] - reach},
		rtreego.Point{xy[0] + reach, xy[1] + reach},
	)
	if err != nil {
		return best, bestDist
	}

	for _, s := range m.tree.SearchIntersect(box) {
		e := s.(*entry)
		d := distance(e.xy, xy)
		if d < bestDist || (d == bestDist && e.index < best.index) {
			best, bestDist = e, d
		}
	}
	return best, bestDist
}

// applyBoundaries assigns attributes from containing boundaries in candidate
// order. Level 2 sets the country. The first containing boundary of any other
// level sets the locality, and the first one at level 3 or 4 also sets the
// region. It reports whether any attribute was assigned.
func (m *Matcher) applyBoundaries(pt geo.Point, match *Match) bool {
	p := pt.Orb()
	assigned := false
	set := func(field *string, name string) {
		if *field == Unknown {
			*field = name
			assigned = true
		}
	}
	for _, b := range m.boundaries {
		if !b.bound.Contains(p) || !planar.MultiPolygonContains(b.polygon, p) {
			continue
		}

		switch {
		case b.level == 2:
			set(&match.Country, b.name)
		case b.level >= 3 && b.level <= 4:
			set(&match.Locality, b.name)
			set(&match.Region, b.name)
		case b.level >= 5 && b.level <= 8:
			set(&match.Locality, b.name)
		}
	}
	return assigned
}

func toBoundary(c poi.Candidate) (boundary, bool) {
	levelText := c.Attributes.Text("admin_level")
	if levelText == "" {
		levelText = c.Subtype
	}
	level, err := strconv.Atoi(levelText)
	if err != nil || c.Name == "" {
		return boundary{}, false
	}

	var mp orb.MultiPolygon
	switch g := c.Geometry.(type) {
	case orb.Polygon:
		mp = orb.MultiPolygon{g}
	case orb.MultiPolygon:
		mp = g
	default:
		return boundary{}, false
	}
	if len(mp) == 0 || mp.Bound().IsEmpty() {
		return boundary{}, false
	}

	return boundary{level: level, name: c.Name, polygon: mp, bound: mp.Bound()}, true
}

func distance(a, b orb.Point) float64 {
	return math.Hypot(a[0]-b[0], a[1]-b[1])
}
