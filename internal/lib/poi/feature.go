package poi

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// Reserved feature properties carrying candidate identity.
const (
	propCategory = "category"
	propSubtype  = "subtype"
	propName     = "name"
)

// ToFeature converts a candidate to a GeoJSON feature. Attributes become
// properties alongside name, category and subtype.
func ToFeature(c Candidate) *geojson.Feature {
	f := geojson.NewFeature(c.Geometry)
	if c.ID != "" {
		f.ID = c.ID
	}
	for k, v := range c.Attributes {
		f.Properties[k] = v.Interface()
	}
	if c.Name != "" {
		f.Properties[propName] = c.Name
	}
	f.Properties[propCategory] = string(c.Category)
	if c.Subtype != "" {
		f.Properties[propSubtype] = c.Subtype
	}
	return f
}

// FromFeature converts a GeoJSON feature to a candidate. Name, category and
// subtype come from the matching properties and are not kept as attributes;
// when category is absent it comes from Classify.
func FromFeature(f *geojson.Feature) (Candidate, error) {
	if f == nil || f.Geometry == nil {
		return Candidate{}, fmt.Errorf("feature has no geometry")
	}

	attrs := FromMap(f.Properties)
	delete(attrs, propName)
	delete(attrs, propCategory)
	delete(attrs, propSubtype)

	c := Candidate{
		Name:       f.Properties.MustString(propName, ""),
		Category:   Category(f.Properties.MustString(propCategory, "")),
		Subtype:    f.Properties.MustString(propSubtype, ""),
		Geometry:   f.Geometry,
		Attributes: attrs,
	}
	if f.ID != nil {
		c.ID = fmt.Sprint(f.ID)
	}

	if c.Category == "" {
		category, subtype, _ := Classify(attrs)
		c.Category = category
		if c.Subtype == "" {
			c.Subtype = subtype
		}
	}
	return c, nil
}

// FeatureCollection converts candidates for export or caching.
func FeatureCollection(candidates []Candidate) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range candidates {
		if c.Geometry == nil {
			continue
		}
		fc.Append(ToFeature(c))
	}
	return fc
}

// FromFeatureCollection converts every feature that has a geometry. Features
// without geometry are counted in skipped.
func FromFeatureCollection(fc *geojson.FeatureCollection) (candidates []Candidate, skipped int) {
	if fc == nil {
		return nil, 0
	}
	candidates = make([]Candidate, 0, len(fc.Features))
	for _, f := range fc.Features {
		c, err := FromFeature(f)
		if err != nil {
			skipped++
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, skipped
}
