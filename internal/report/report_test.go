package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/routepoi/internal/lib/correlate"
	"github.com/dpup/routepoi/internal/lib/geo"
	"github.com/dpup/routepoi/internal/lib/poi"
	"github.com/dpup/routepoi/internal/lib/route"
	"github.com/dpup/routepoi/internal/lib/settlement"
)

func testRoute(t *testing.T) (*route.Route, *route.Buffer) {
	t.Helper()
	r, err := route.FromPoints([]geo.Point{{Latitude: 47, Longitude: 9}, {Latitude: 47, Longitude: 9.1}})
	require.NoError(t, err)
	b, err := route.NewBuffer(r, 500)
	require.NoError(t, err)
	return r, b
}

func testRecords() []correlate.Record {
	height := 431.4
	return []correlate.Record{
		{
			ID: "node/1", Name: "Bäckerei <Huber>", Category: poi.CategoryShop, Subtype: "bakery",
			Location:   geo.Point{Latitude: 47.0012, Longitude: 9.0101},
			DistanceKm: 0.77, OffsetMeters: 133.4, Classification: correlate.Nearby,
			Settlement: &settlement.Match{Name: "Au", DistanceKm: 1.25, Locality: "Rheintal", Region: "St. Gallen", Country: "Schweiz", Source: settlement.SourceBoundary},
			Elevation:  &height,
			Attributes: poi.Attributes{"shop": poi.StringValue("bakery")},
		},
		{
			ID: "way/2", Name: "Seecamping", Category: poi.CategoryCampsite, Subtype: "camp_site",
			Location:   geo.Point{Latitude: 47.0, Longitude: 9.05},
			DistanceKm: 3.8, OffsetMeters: 12, Classification: correlate.OnRoute,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testRecords()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])

	assert.Equal(t, []string{
		"0.77", "Bäckerei <Huber>", "bakery", "shop", "47.001200,9.010100",
		"https://www.google.com/maps/search/?api=1&query=47.001200%2C9.010100",
		"133", "nearby", "Au", "1.25", "Rheintal", "St. Gallen", "Schweiz", "431",
	}, rows[1])

	assert.Equal(t, "3.80", rows[2][0])
	assert.Equal(t, "on_route", rows[2][7])
	assert.Equal(t, "", rows[2][8], "no settlement")
	assert.Equal(t, "", rows[2][13], "no elevation")
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, strings.Join(csvHeader, ",")+"\n", buf.String())
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	summary := Summary{
		Title: "Lake Loop", RunID: "run-1", LengthKm: 7.6, BufferMeters: 500, Chunks: 1, Skipped: 2,
		Classification: map[correlate.Classification]int{correlate.Nearby: 1, correlate.OnRoute: 1},
	}
	require.NoError(t, WriteHTML(&buf, summary, testRecords()))

	out := buf.String()
	assert.Contains(t, out, "<title>Lake Loop</title>")
	assert.Contains(t, out, "Bäckerei &lt;Huber&gt;")
	assert.NotContains(t, out, "<Huber>")
	assert.Contains(t, out, "Route length 7.60 km")
	assert.Contains(t, out, "2 skipped")
	assert.Contains(t, out, "Au (1.25 km)")
	assert.Contains(t, out, `<tr class="on_route">`)
	assert.Contains(t, out, "<li>nearby: 1</li>")
	assert.Contains(t, out, "run-1")
}

func TestGeoJSON(t *testing.T) {
	r, b := testRoute(t)
	fc := GeoJSON(r, b, testRecords())
	require.Len(t, fc.Features, 4)

	assert.Equal(t, KindRoute, fc.Features[0].Properties["kind"])
	assert.IsType(t, orb.LineString{}, fc.Features[0].Geometry)
	assert.Equal(t, KindBuffer, fc.Features[1].Properties["kind"])
	assert.IsType(t, orb.Polygon{}, fc.Features[1].Geometry)

	rec := fc.Features[2]
	assert.Equal(t, "node/1", rec.ID)
	assert.Equal(t, orb.Point{9.0101, 47.0012}, rec.Geometry)
	assert.Equal(t, 0.77, rec.Properties["distance_km"])
	assert.Equal(t, "Au", rec.Properties["settlement"])
	assert.Equal(t, 431.4, rec.Properties["elevation_meters"])
	assert.Equal(t, map[string]interface{}{"shop": "bakery"}, rec.Properties["tags"])

	_, hasSettlement := fc.Features[3].Properties["settlement"]
	assert.False(t, hasSettlement)
}

func TestWriteGeoJSONRoundTrip(t *testing.T) {
	r, b := testRoute(t)
	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, r, b, testRecords()))

	fc, err := geojson.UnmarshalFeatureCollection(buf.Bytes())
	require.NoError(t, err)
	assert.Len(t, fc.Features, 4)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Equal(t, "FeatureCollection", raw["type"])
}

func TestWriteKML(t *testing.T) {
	r, b := testRoute(t)
	var buf bytes.Buffer
	require.NoError(t, WriteKML(&buf, "Lake Loop", r, b, testRecords()))

	out := buf.String()
	assert.Contains(t, out, "http://www.opengis.net/kml/2.2")
	assert.Contains(t, out, "<name>Corridor</name>")
	assert.Contains(t, out, "<name>500 m corridor</name>")
	assert.Contains(t, out, "<name>Seecamping</name>")
	assert.Contains(t, out, "&lt;Huber&gt;")
	assert.Equal(t, 4, strings.Count(out, "<Placemark>"))

	var doc struct {
		XMLName xml.Name
	}
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "kml", doc.XMLName.Local)
}

func TestDescribe(t *testing.T) {
	d := describe(testRecords()[0])
	assert.Equal(t, "bakery (shop)\n0.77 km along route, 133 m off\nNear Au, St. Gallen, Schweiz\nElevation 431 m", d)
}
