package overpass

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"

	"github.com/dpup/routepoi/internal/lib/geo"
)

const (
	timeoutSlack   = 10 * time.Second
	defaultTimeout = 180 * time.Second
)

// filter is a type selector and tag filter, e.g. node["shop"~"^(bakery)$"].
type filter struct {
	types []string
	tags  string
}

func (c *Client) poiFilters() []filter {
	var filters []filter
	if len(c.cfg.ShopTypes) > 0 {
		filters = append(filters, filter{types: []string{"node", "way"}, tags: tagMatch("shop", c.cfg.ShopTypes)})
	}
	if len(c.cfg.CampsiteTypes) > 0 {
		filters = append(filters, filter{types: []string{"node", "way"}, tags: tagMatch("tourism", c.cfg.CampsiteTypes)})
	}
	return filters
}

func (c *Client) settlementFilters() []filter {
	return []filter{{types: []string{"node"}, tags: tagMatch("place", c.cfg.SettlementTypes)}}
}

func (c *Client) boundaryFilters() []filter {
	return []filter{{
		types: []string{"relation"},
		tags:  `["boundary"="administrative"]` + tagMatch("admin_level", c.cfg.AdminLevels),
	}}
}

func tagMatch(key string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = regexp.QuoteMeta(v)
	}
	return fmt.Sprintf(`["%s"~"^(%s)$"]`, key, strings.Join(quoted, "|"))
}

func (c *Client) buildQuery(corridor Corridor, filters []filter) (string, error) {
	path, radius, err := c.simplify(corridor)
	if err != nil {
		return "", err
	}
	if len(filters) == 0 {
		return "", fmt.Errorf("no feature types configured")
	}
	return renderQuery(path, radius, filters, c.cfg.Timeout), nil
}

// simplify reduces the corridor path with Douglas-Peucker in planar space and
// widens the radius by the tolerance so the corridor still covers the path.
func (c *Client) simplify(corridor Corridor) ([]geo.Point, float64, error) {
	if len(corridor.Path) == 0 {
		return nil, 0, fmt.Errorf("corridor has no points")
	}
	if !(corridor.RadiusMeters > 0) {
		return nil, 0, fmt.Errorf("corridor radius must be positive, got %v", corridor.RadiusMeters)
	}

	tolerance := c.cfg.SimplifyToleranceMeters
	if tolerance <= 0 || len(corridor.Path) < 3 {
		return corridor.Path, corridor.RadiusMeters, nil
	}

	proj := geo.ProjectorFor(corridor.Path)
	planar, err := proj.ToPlanar(geo.LineString(corridor.Path))
	if err != nil {
		return nil, 0, err
	}
	reduced := simplify.DouglasPeucker(tolerance).Simplify(planar)
	ls, ok := proj.ToGeographic(reduced).(orb.LineString)
	if !ok {
		return corridor.Path, corridor.RadiusMeters, nil
	}
	return geo.PointsOf(ls), corridor.RadiusMeters + tolerance, nil
}

// renderQuery builds an Overpass QL union of filters, each restricted to
// within radius meters of the path, returning tags and full geometry.
func renderQuery(path []geo.Point, radius float64, filters []filter, timeout time.Duration) string {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	coords := make([]string, len(path))
	for i, p := range path {
		coords[i] = fmt.Sprintf("%.6f,%.6f", p.Latitude, p.Longitude)
	}
	around := fmt.Sprintf("(around:%.0f,%s)", math.Ceil(radius), strings.Join(coords, ","))

	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", int(timeout.Seconds()))
	for _, f := range filters {
		for _, t := range f.types {
			fmt.Fprintf(&b, "  %s%s%s;\n", t, f.tags, around)
		}
	}
	b.WriteString(");\nout tags geom;\n")
	return b.String()
}
