package track

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/routepoi/internal/lib/geo"
)

func TestLoadGPX(t *testing.T) {
	tr, err := Load("testdata/ride.gpx")
	require.NoError(t, err)
	assert.Equal(t, "Lake Loop", tr.Name)
	assert.Equal(t, []geo.Point{
		{Latitude: 47.00, Longitude: 9.00},
		{Latitude: 47.01, Longitude: 9.01},
		{Latitude: 47.02, Longitude: 9.03},
	}, tr.Points, "segments are joined and repeats dropped")
}

func TestParseGPXRoutesFallback(t *testing.T) {
	data := []byte(`<?xml version="1.0"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <rte>
    <name>Planned</name>
    <rtept lat="46.5" lon="8.5"></rtept>
    <rtept lat="46.6" lon="8.6"></rtept>
  </rte>
</gpx>`)
	tr, err := ParseGPX(data)
	require.NoError(t, err)
	assert.Equal(t, "Planned", tr.Name)
	assert.Len(t, tr.Points, 2)
}

func TestParseGPXWithoutLines(t *testing.T) {
	data := []byte(`<?xml version="1.0"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <wpt lat="46.5" lon="8.5"><name>Hut</name></wpt>
</gpx>`)
	_, err := ParseGPX(data)
	assert.ErrorIs(t, err, ErrNoTrack)
}

func TestLoadGeoJSONFeatureCollection(t *testing.T) {
	tr, err := Load("testdata/ride.geojson")
	require.NoError(t, err)
	assert.Equal(t, "Day 1", tr.Name)
	assert.Equal(t, []geo.Point{
		{Latitude: 47.00, Longitude: 9.00},
		{Latitude: 47.01, Longitude: 9.01},
		{Latitude: 47.02, Longitude: 9.02},
		{Latitude: 47.02, Longitude: 9.03},
	}, tr.Points)
}

func TestParseGeoJSONGeometryAndFeature(t *testing.T) {
	tr, err := ParseGeoJSON([]byte(`{"type":"LineString","coordinates":[[-122.3,47.6],[-122.6,45.5]]}`))
	require.NoError(t, err)
	assert.Equal(t, geo.Point{Latitude: 45.5, Longitude: -122.6}, tr.Points[1])

	tr, err = ParseGeoJSON([]byte(`{"type":"Feature","properties":{"name":"I-5"},"geometry":{"type":"LineString","coordinates":[[-122.3,47.6],[-122.6,45.5]]}}`))
	require.NoError(t, err)
	assert.Equal(t, "I-5", tr.Name)

	_, err = ParseGeoJSON([]byte(`{"type":"Point","coordinates":[1,2]}`))
	assert.ErrorIs(t, err, ErrNoTrack)

	_, err = ParseGeoJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseGeoJSONRejectsOutOfRange(t *testing.T) {
	_, err := ParseGeoJSON([]byte(`{"type":"LineString","coordinates":[[0,0],[0,95]]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestLoadPolyline(t *testing.T) {
	points := []geo.Point{{Latitude: 38.5, Longitude: -120.2}, {Latitude: 40.7, Longitude: -120.95}, {Latitude: 43.252, Longitude: -126.453}}
	path := filepath.Join(t.TempDir(), "route.polyline")
	require.NoError(t, os.WriteFile(path, []byte(geo.EncodePolyline(points)+"\n"), 0o600))

	tr, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "route", tr.Name)
	require.Len(t, tr.Points, 3)
	for i := range points {
		assert.InDelta(t, points[i].Latitude, tr.Points[i].Latitude, 1e-5)
		assert.InDelta(t, points[i].Longitude, tr.Points[i].Longitude, 1e-5)
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("testdata/missing.gpx")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "route.shp")
	require.NoError(t, os.WriteFile(path, []byte("binary"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported track format")
}

func TestLoadKML(t *testing.T) {
	tr, err := Load("testdata/ride.kml")
	require.NoError(t, err)
	assert.Equal(t, "Pass road", tr.Name)
	assert.Equal(t, []geo.Point{
		{Latitude: 46.5, Longitude: 8.5},
		{Latitude: 46.6, Longitude: 8.6},
		{Latitude: 46.7, Longitude: 8.6},
		{Latitude: 46.8, Longitude: 8.7},
	}, tr.Points, "point placemarks are ignored and line strings joined")
}

func TestParseKMLErrors(t *testing.T) {
	_, err := ParseKML([]byte(`<kml><Document><Placemark><Point><coordinates>8.5,46.5</coordinates></Point></Placemark></Document></kml>`))
	assert.ErrorIs(t, err, ErrNoTrack)

	_, err = ParseKML([]byte(`<kml><Placemark><LineString><coordinates>8.5;46.5 8.6,46.6</coordinates></LineString></Placemark></kml>`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid KML coordinate")
}
