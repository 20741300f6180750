package poi

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/dpup/routepoi/internal/lib/geo"
)

// Category is the coarse kind of a candidate.
type Category string

const (
	CategoryShop       Category = "shop"
	CategoryCampsite   Category = "campsite"
	CategorySettlement Category = "settlement"
	CategoryBoundary   Category = "boundary"
	CategoryOther      Category = "other"
)

// Candidate is a feature supplied by an external source. The correlation
// engine never modifies it.
type Candidate struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Category   Category     `json:"category"`
	Subtype    string       `json:"subtype"`
	Geometry   orb.Geometry `json:"-"`
	Attributes Attributes   `json:"attributes,omitempty"`
}

// DisplayName returns the name, or a placeholder built from the subtype.
func (c Candidate) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.Subtype != "" {
		return "Unnamed " + c.Subtype
	}
	return "Unnamed"
}

// RepresentativePoint resolves a single location for the candidate: the point
// itself, or the centroid of the geometry computed in proj's planar space.
func (c Candidate) RepresentativePoint(proj *geo.Projector) (geo.Point, error) {
	switch g := c.Geometry.(type) {
	case nil:
		return geo.Point{}, fmt.Errorf("%w: candidate %s has no geometry", geo.ErrGeometryDegenerate, c.ID)
	case orb.Point:
		p := geo.FromOrb(g)
		if !geo.IsValid(p) {
			return geo.Point{}, fmt.Errorf("%w: candidate %s location out of range", geo.ErrGeometryDegenerate, c.ID)
		}
		return p, nil
	}

	if c.Geometry.Bound().IsEmpty() {
		return geo.Point{}, fmt.Errorf("%w: candidate %s has empty %s", geo.ErrGeometryDegenerate, c.ID, c.Geometry.GeoJSONType())
	}

	projected, err := proj.ToPlanar(c.Geometry)
	if err != nil {
		return geo.Point{}, fmt.Errorf("candidate %s: %w", c.ID, err)
	}
	centroid, _ := planar.CentroidArea(projected)
	if math.IsNaN(centroid[0]) || math.IsNaN(centroid[1]) {
		return geo.Point{}, fmt.Errorf("%w: candidate %s has no centroid", geo.ErrGeometryDegenerate, c.ID)
	}
	return proj.Inverse(centroid), nil
}

// Classify maps source tags to a category and subtype. ok is false when no
// rule matches.
func Classify(attrs Attributes) (category Category, subtype string, ok bool) {
	if v := attrs.Text("shop"); v != "" {
		return CategoryShop, v, true
	}
	if v := attrs.Text("amenity"); v == "marketplace" {
		return CategoryShop, v, true
	}
	switch v := attrs.Text("tourism"); v {
	case "camp_site", "caravan_site":
		return CategoryCampsite, v, true
	}
	if v := attrs.Text("place"); v != "" {
		return CategorySettlement, v, true
	}
	if attrs.Text("boundary") == "administrative" {
		return CategoryBoundary, attrs.Text("admin_level"), true
	}
	return CategoryOther, "", false
}
