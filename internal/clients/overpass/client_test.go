package overpass

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dpup/routepoi/internal/config"
	"github.com/dpup/routepoi/internal/lib/geo"
	"github.com/dpup/routepoi/internal/lib/poi"
)

// MockHTTPDoer is a mock implementation of HTTPDoer
type MockHTTPDoer struct {
	mock.Mock
}

func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	return args.Get(0).(*http.Response), args.Error(1)
}

func loadTestFixture(t *testing.T, filename string) string {
	data, err := os.ReadFile("testdata/" + filename)
	require.NoError(t, err, "Failed to load test fixture %s", filename)
	return string(data)
}

func createMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func testConfig() config.OverpassConfig {
	cfg := config.DefaultConfig().Overpass
	cfg.MinInterval = 0
	return cfg
}

func testCorridor() Corridor {
	return Corridor{
		Path:         []geo.Point{{Latitude: 47.0, Longitude: 9.0}, {Latitude: 47.01, Longitude: 9.05}},
		RadiusMeters: 500,
	}
}

// queryOf extracts the Overpass QL posted in req.
func queryOf(t *testing.T, req *http.Request) string {
	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	form, err := url.ParseQuery(string(body))
	require.NoError(t, err)
	return form.Get("data")
}

func TestFetchPOIs_Success(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	var posted string
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Run(func(args mock.Arguments) {
		req := args.Get(0).(*http.Request)
		assert.Equal(t, "POST", req.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
		posted = queryOf(t, req)
	}).Return(createMockResponse(200, loadTestFixture(t, "pois.json")), nil)

	client := NewClientWithHTTPDoer(testConfig(), mockHTTP)
	candidates, err := client.FetchPOIs(context.Background(), testCorridor())
	require.NoError(t, err)
	mockHTTP.AssertExpectations(t)

	assert.Contains(t, posted, "[out:json][timeout:60];")
	assert.Contains(t, posted, `node["shop"~"^(supermarket|convenience|`)
	assert.Contains(t, posted, `way["tourism"~"^(camp_site|caravan_site)$"](around:500,47.000000,9.000000,47.010000,9.050000);`)
	assert.Contains(t, posted, "out tags geom;")

	require.Len(t, candidates, 3, "way without geometry or center is dropped")

	shop := candidates[0]
	assert.Equal(t, "node/1001", shop.ID)
	assert.Equal(t, "Dorfladen", shop.Name)
	assert.Equal(t, poi.CategoryShop, shop.Category)
	assert.Equal(t, "supermarket", shop.Subtype)
	assert.Equal(t, orb.Point{9.0101, 47.0012}, shop.Geometry)
	assert.Equal(t, "Mo-Sa 08:00-19:00", shop.Attributes.Text("opening_hours"))
	assert.NotContains(t, shop.Attributes, "name", "name is carried by the candidate, not its attributes")

	camp := candidates[1]
	assert.Equal(t, "way/2002", camp.ID)
	assert.Equal(t, poi.CategoryCampsite, camp.Category)
	polygon, ok := camp.Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.Len(t, polygon[0], 5)

	bakery := candidates[2]
	assert.Equal(t, "bakery", bakery.Subtype)
	assert.IsType(t, orb.LineString{}, bakery.Geometry)
	assert.Equal(t, "Unnamed bakery", bakery.DisplayName())
}

func TestFetchBoundaries_AssemblesRings(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	var posted string
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Run(func(args mock.Arguments) {
		posted = queryOf(t, args.Get(0).(*http.Request))
	}).Return(createMockResponse(200, loadTestFixture(t, "boundaries.json")), nil)

	client := NewClientWithHTTPDoer(testConfig(), mockHTTP)
	candidates, err := client.FetchBoundaries(context.Background(), testCorridor())
	require.NoError(t, err)
	assert.Contains(t, posted, `relation["boundary"="administrative"]["admin_level"~"^(2|4|6)$"]`)

	require.Len(t, candidates, 2)
	canton := candidates[0]
	assert.Equal(t, poi.CategoryBoundary, canton.Category)
	assert.Equal(t, "4", canton.Subtype)
	mp, ok := canton.Geometry.(orb.MultiPolygon)
	require.True(t, ok)
	require.Len(t, mp, 1)
	ring := mp[0][0]
	assert.Len(t, ring, 5)
	assert.True(t, ring.Closed())
	assert.Equal(t, orb.Bound{Min: orb.Point{8, 46}, Max: orb.Point{10, 48}}, ring.Bound())

	open := candidates[1]
	assert.Equal(t, orb.Point{10.5, 46.5}, open.Geometry, "unclosed relation falls back to its bounds center")
}

func TestFetchSettlements_Query(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	var posted string
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Run(func(args mock.Arguments) {
		posted = queryOf(t, args.Get(0).(*http.Request))
	}).Return(createMockResponse(200, `{"elements":[{"type":"node","id":5,"lat":47.1,"lon":9.1,"tags":{"place":"village","name":"Au"}}]}`), nil)

	client := NewClientWithHTTPDoer(testConfig(), mockHTTP)
	candidates, err := client.FetchSettlements(context.Background(), testCorridor())
	require.NoError(t, err)
	assert.Contains(t, posted, `node["place"~"^(city|town|village)$"]`)
	assert.NotContains(t, posted, "way[")

	require.Len(t, candidates, 1)
	assert.Equal(t, poi.CategorySettlement, candidates[0].Category)
	assert.Equal(t, "village", candidates[0].Subtype)
}

func TestQuery_ErrorStatuses(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   string
	}{
		{429, "", "rate limit exceeded"},
		{504, "", "timed out"},
		{400, "parse error: line 1", "API error 400: parse error: line 1"},
	}
	for _, tc := range cases {
		mockHTTP := &MockHTTPDoer{}
		mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(createMockResponse(tc.status, tc.body), nil)

		client := NewClientWithHTTPDoer(testConfig(), mockHTTP)
		_, err := client.FetchPOIs(context.Background(), testCorridor())
		require.Error(t, err)
		assert.Contains(t, err.Error(), tc.want)
	}
}

func TestQuery_RuntimeRemark(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(200, `{"elements":[],"remark":"runtime error: Query timed out in \"query\""}`), nil)

	client := NewClientWithHTTPDoer(testConfig(), mockHTTP)
	_, err := client.FetchPOIs(context.Background(), testCorridor())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runtime error")
}

func TestQuery_InvalidJSON(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(createMockResponse(200, "<html>"), nil)

	client := NewClientWithHTTPDoer(testConfig(), mockHTTP)
	_, err := client.FetchPOIs(context.Background(), testCorridor())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestCorridorValidation(t *testing.T) {
	client := NewClientWithHTTPDoer(testConfig(), &MockHTTPDoer{})

	_, err := client.FetchPOIs(context.Background(), Corridor{RadiusMeters: 100})
	assert.Error(t, err)

	_, err = client.FetchPOIs(context.Background(), Corridor{Path: testCorridor().Path})
	assert.Error(t, err)
}

func TestSimplifyCollinearPath(t *testing.T) {
	var path []geo.Point
	for i := 0; i <= 100; i++ {
		path = append(path, geo.Point{Latitude: 47, Longitude: 9 + float64(i)*0.001})
	}

	client := NewClientWithHTTPDoer(testConfig(), &MockHTTPDoer{})
	reduced, radius, err := client.simplify(Corridor{Path: path, RadiusMeters: 500})
	require.NoError(t, err)
	assert.Less(t, len(reduced), 10)
	assert.Equal(t, 525.0, radius)
	assert.InDelta(t, 9.0, reduced[0].Longitude, 1e-6)
	assert.InDelta(t, 9.1, reduced[len(reduced)-1].Longitude, 1e-6)
}

func TestRenderQueryDefaultsTimeout(t *testing.T) {
	q := renderQuery([]geo.Point{{Latitude: 1, Longitude: 2}}, 99.2, []filter{{types: []string{"node"}, tags: `["amenity"]`}}, 0)
	assert.Equal(t, "[out:json][timeout:180];\n(\n  node[\"amenity\"](around:100,1.000000,2.000000);\n);\nout tags geom;\n", q)
}

func TestQuery_Throttled(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(200, `{"elements":[]}`), nil).Once()

	cfg := testConfig()
	cfg.MinInterval = time.Hour
	client := NewClientWithHTTPDoer(cfg, mockHTTP)
	_, err := client.Query(context.Background(), "[out:json];node(1);out;")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = client.Query(ctx, "[out:json];node(1);out;")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	mockHTTP.AssertNumberOfCalls(t, "Do", 1)
}
