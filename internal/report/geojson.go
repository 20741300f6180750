package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"

	"github.com/dpup/routepoi/internal/lib/correlate"
	"github.com/dpup/routepoi/internal/lib/route"
)

// Feature kinds written to the "kind" property.
const (
	KindRoute  = "route"
	KindBuffer = "buffer"
	KindRecord = "record"
)

// GeoJSON builds a collection holding the route line, the buffer polygon
// when b is not nil, and one point per record.
func GeoJSON(r *route.Route, b *route.Buffer, records []correlate.Record) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	if r != nil {
		f := geojson.NewFeature(r.LineString())
		f.Properties["kind"] = KindRoute
		f.Properties["length_meters"] = r.Length()
		f.Properties["zone"] = r.Projector().Zone().String()
		fc.Append(f)
	}

	if b != nil {
		f := geojson.NewFeature(b.Polygon())
		f.Properties["kind"] = KindBuffer
		f.Properties["distance_meters"] = b.Distance()
		fc.Append(f)
	}

	for _, rec := range records {
		fc.Append(RecordFeature(rec))
	}
	return fc
}

// RecordFeature converts one record to a point feature.
func RecordFeature(rec correlate.Record) *geojson.Feature {
	f := geojson.NewFeature(rec.Location.Orb())
	if rec.ID != "" {
		f.ID = rec.ID
	}
	f.Properties["kind"] = KindRecord
	f.Properties["name"] = rec.Name
	f.Properties["category"] = string(rec.Category)
	f.Properties["subtype"] = rec.Subtype
	f.Properties["distance_km"] = rec.DistanceKm
	f.Properties["offset_meters"] = rec.OffsetMeters
	f.Properties["classification"] = string(rec.Classification)
	f.Properties["google_maps"] = GoogleMapsURL(rec.Location)
	if rec.Settlement != nil {
		f.Properties["settlement"] = rec.Settlement.Name
		f.Properties["settlement_distance_km"] = rec.Settlement.DistanceKm
		f.Properties["locality"] = rec.Settlement.Locality
		f.Properties["region"] = rec.Settlement.Region
		f.Properties["country"] = rec.Settlement.Country
	}
	if rec.Elevation != nil {
		f.Properties["elevation_meters"] = *rec.Elevation
	}
	if len(rec.Attributes) > 0 {
		f.Properties["tags"] = rec.Attributes.ToMap()
	}
	return f
}

// WriteGeoJSON writes the collection built by GeoJSON.
func WriteGeoJSON(w io.Writer, r *route.Route, b *route.Buffer, records []correlate.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(GeoJSON(r, b, records)); err != nil {
		return fmt.Errorf("failed to write GeoJSON: %w", err)
	}
	return nil
}
