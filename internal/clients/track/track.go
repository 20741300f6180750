package track

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tkrajina/gpxgo/gpx"

	"github.com/dpup/routepoi/internal/lib/geo"
)

// ErrNoTrack is returned when a file holds no usable line geometry.
var ErrNoTrack = errors.New("no track geometry found")

// Track is a named sequence of route vertices.
type Track struct {
	Name   string      `json:"name"`
	Points []geo.Point `json:"points"`
}

// Load reads a track file, choosing the parser by extension: .gpx, .kml,
// .geojson or .json, and .polyline or .txt for an encoded polyline.
func Load(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read track: %w", err)
	}

	var t *Track
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gpx":
		t, err = ParseGPX(data)
	case ".kml":
		t, err = ParseKML(data)
	case ".geojson", ".json":
		t, err = ParseGeoJSON(data)
	case ".polyline", ".txt":
		t, err = ParsePolyline(string(data))
	default:
		return nil, fmt.Errorf("unsupported track format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if t.Name == "" {
		t.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return t, nil
}

// ParseGPX reads track segments in order, falling back to routes when the
// file has no tracks.
func ParseGPX(data []byte) (*Track, error) {
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GPX: %w", err)
	}

	t := &Track{Name: doc.Name}
	for _, trk := range doc.Tracks {
		if t.Name == "" {
			t.Name = trk.Name
		}
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				t.append(geo.Point{Latitude: p.Latitude, Longitude: p.Longitude})
			}
		}
	}
	if len(t.Points) == 0 {
		for _, rte := range doc.Routes {
			if t.Name == "" {
				t.Name = rte.Name
			}
			for _, p := range rte.Points {
				t.append(geo.Point{Latitude: p.Latitude, Longitude: p.Longitude})
			}
		}
	}
	return t.validate()
}

// ParseGeoJSON accepts a LineString or MultiLineString geometry, a Feature
// holding one, or a FeatureCollection whose line features are joined in order.
func ParseGeoJSON(data []byte) (*Track, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON: %w", err)
	}

	t := &Track{}
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse GeoJSON: %w", err)
		}
		for _, f := range fc.Features {
			if t.addGeometry(f.Geometry) && t.Name == "" {
				t.Name = f.Properties.MustString("name", "")
			}
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse GeoJSON: %w", err)
		}
		t.addGeometry(f.Geometry)
		t.Name = f.Properties.MustString("name", "")
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse GeoJSON: %w", err)
		}
		t.addGeometry(g.Geometry())
	}
	return t.validate()
}

// ParsePolyline decodes a Google encoded polyline at precision 5.
func ParsePolyline(encoded string) (*Track, error) {
	points, err := geo.DecodePolyline(strings.TrimSpace(encoded))
	if err != nil {
		return nil, err
	}
	t := &Track{}
	for _, p := range points {
		t.append(p)
	}
	return t.validate()
}

func (t *Track) addGeometry(g orb.Geometry) bool {
	switch g := g.(type) {
	case orb.LineString:
		for _, p := range g {
			t.append(geo.FromOrb(p))
		}
		return len(g) > 0
	case orb.MultiLineString:
		added := false
		for _, ls := range g {
			added = t.addGeometry(ls) || added
		}
		return added
	}
	return false
}

// append skips consecutive repeats.
func (t *Track) append(p geo.Point) {
	if n := len(t.Points); n > 0 && t.Points[n-1] == p {
		return
	}
	t.Points = append(t.Points, p)
}

func (t *Track) validate() (*Track, error) {
	if len(t.Points) < 2 {
		return nil, ErrNoTrack
	}
	for i, p := range t.Points {
		if !geo.IsValid(p) {
			return nil, fmt.Errorf("point %d out of range: %v", i, p)
		}
	}
	return t, nil
}
