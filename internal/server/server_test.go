package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/routepoi/internal/config"
	"github.com/dpup/routepoi/internal/lib/geo"
)

const testRoute = `{"points":[{"lat":47.0,"lon":9.0},{"lat":47.0,"lon":9.1}]}`

func newTestServer() http.Handler {
	return NewServer(config.DefaultConfig(), nil).Handler()
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHomepage(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/api/v1/correlate")
}

func TestCorrelate(t *testing.T) {
	body := `{
		"route": ` + testRoute + `,
		"candidates": {"type":"FeatureCollection","features":[
			{"type":"Feature","id":"node/2","properties":{"name":"Far Shop","shop":"bakery"},"geometry":{"type":"Point","coordinates":[9.08,47.0]}},
			{"type":"Feature","id":"node/1","properties":{"name":"Near Shop","shop":"supermarket"},"geometry":{"type":"Point","coordinates":[9.02,47.001]}}
		]},
		"settlements": {"type":"FeatureCollection","features":[
			{"type":"Feature","id":"node/9","properties":{"name":"Au","place":"village","addr:country":"CH"},"geometry":{"type":"Point","coordinates":[9.05,47.01]}}
		]}
	}`
	rec := post(t, newTestServer(), "/api/v1/correlate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		LengthMeters    float64 `json:"length_meters"`
		Zone            string  `json:"zone"`
		InvalidFeatures int     `json:"invalid_features"`
		Result          struct {
			RunID   string `json:"run_id"`
			Records []struct {
				ID             string  `json:"id"`
				Category       string  `json:"category"`
				Subtype        string  `json:"subtype"`
				DistanceKm     float64 `json:"distance_km"`
				Classification string  `json:"classification"`
				Settlement     struct {
					Name    string `json:"name"`
					Country string `json:"country"`
				} `json:"settlement"`
			} `json:"records"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "32N", resp.Zone)
	assert.InDelta(t, 7600, resp.LengthMeters, 100)
	assert.Equal(t, 0, resp.InvalidFeatures)
	assert.NotEmpty(t, resp.Result.RunID)
	require.Len(t, resp.Result.Records, 2)
	assert.Equal(t, "node/1", resp.Result.Records[0].ID)
	assert.Equal(t, "shop", resp.Result.Records[0].Category)
	assert.Equal(t, "supermarket", resp.Result.Records[0].Subtype)
	assert.Equal(t, "nearby", resp.Result.Records[0].Classification)
	assert.Equal(t, "node/2", resp.Result.Records[1].ID)
	assert.Equal(t, "on_route", resp.Result.Records[1].Classification)
	assert.Less(t, resp.Result.Records[0].DistanceKm, resp.Result.Records[1].DistanceKm)
	assert.Equal(t, "Au", resp.Result.Records[0].Settlement.Name)
	assert.Equal(t, "CH", resp.Result.Records[0].Settlement.Country)
}

func TestCorrelateRejectsBadRoute(t *testing.T) {
	rec := post(t, newTestServer(), "/api/v1/correlate", `{"route":{"points":[{"lat":47,"lon":9}]}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least 2 points")

	rec = post(t, newTestServer(), "/api/v1/correlate", `{"route":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
}

func TestBuffer(t *testing.T) {
	rec := post(t, newTestServer(), "/api/v1/buffer", `{"route":`+testRoute+`,"distance_meters":250}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	f, err := geojson.UnmarshalFeature(rec.Body.Bytes())
	require.NoError(t, err)
	polygon, ok := f.Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.True(t, polygon[0].Closed())
	assert.Equal(t, 250.0, f.Properties["distance_meters"])

	bound := polygon.Bound()
	assert.Less(t, bound.Min.Lon(), 9.0)
	assert.Greater(t, bound.Max.Lon(), 9.1)
	assert.Greater(t, bound.Max.Lat(), 47.0)
}

func TestBufferRejectsNegativeDistance(t *testing.T) {
	rec := post(t, newTestServer(), "/api/v1/buffer", `{"route":`+testRoute+`,"distance_meters":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSegments(t *testing.T) {
	encoded := geo.EncodePolyline([]geo.Point{{Latitude: 47, Longitude: 9}, {Latitude: 47, Longitude: 9.1}})
	body := `{"route":{"polyline":` + jsonString(t, encoded) + `},"chunk_length_meters":3000,"chunk_overlap_meters":0}`
	rec := post(t, newTestServer(), "/api/v1/segments", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var chunks []struct {
		Index    int     `json:"index"`
		Start    float64 `json:"start_meters"`
		End      float64 `json:"end_meters"`
		Polyline string  `json:"polyline"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chunks))
	require.Len(t, chunks, 3)
	assert.Equal(t, 0.0, chunks[0].Start)
	assert.Equal(t, 3000.0, chunks[0].End)
	assert.Equal(t, 2, chunks[2].Index)
	assert.NotEmpty(t, chunks[1].Polyline)
}

func TestLocate(t *testing.T) {
	body := `{"route":` + testRoute + `,"points":[{"lat":47.0,"lon":9.05},{"lat":95,"lon":0}]}`
	rec := post(t, newTestServer(), "/api/v1/locate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out []locateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.InDelta(t, 3.8, out[0].DistanceKm, 0.05)
	assert.Empty(t, out[0].Error)
	assert.NotEmpty(t, out[1].Error)
}

func jsonString(t *testing.T, s string) string {
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return string(b)
}
