package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointToPoint(t *testing.T) {
	// Highway 4 test coordinates: Angels Camp to Murphys (real route)
	angelscamp := Point{Latitude: 38.0675, Longitude: -120.5436}
	murphys := Point{Latitude: 38.1391, Longitude: -120.4561}

	distance, err := PointToPoint(angelscamp, murphys)
	require.NoError(t, err)
	assert.InDelta(t, 11046, distance, 100, "Distance should be approximately 11.0km")

	invalidPoint := Point{Latitude: 200, Longitude: -300}
	_, err = PointToPoint(angelscamp, invalidPoint)
	assert.Error(t, err, "Should return error for invalid coordinates")

	distance, err = PointToPoint(murphys, murphys)
	require.NoError(t, err)
	assert.Equal(t, 0.0, distance)
}

func TestPathLength(t *testing.T) {
	points := []Point{
		{Latitude: 38.0675, Longitude: -120.5436},
		{Latitude: 38.1391, Longitude: -120.4561},
		{Latitude: 38.0675, Longitude: -120.5436},
	}
	assert.InDelta(t, 2*11046, PathLength(points), 200)
	assert.Equal(t, 0.0, PathLength(points[:1]))
}

func TestDecodeEncodePolyline(t *testing.T) {
	points, err := DecodePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.InDelta(t, 38.5, points[0].Latitude, 1e-5)
	assert.InDelta(t, -120.2, points[0].Longitude, 1e-5)
	assert.InDelta(t, 43.252, points[2].Latitude, 1e-5)
	assert.InDelta(t, -126.453, points[2].Longitude, 1e-5)

	assert.Equal(t, "_p~iF~ps|U_ulLnnqC_mqNvxq`@", EncodePolyline(points))

	_, err = DecodePolyline("")
	assert.Error(t, err)
}

func TestNewPoint(t *testing.T) {
	p, err := NewPoint(38.0675, -120.5436)
	require.NoError(t, err)
	assert.Equal(t, 38.0675, p.Latitude)

	_, err = NewPoint(91, 0)
	assert.Error(t, err)
	_, err = NewPoint(0, math.NaN())
	assert.Error(t, err)
}

func TestLineStringRoundTrip(t *testing.T) {
	points := []Point{
		{Latitude: 38.0675, Longitude: -120.5436},
		{Latitude: 38.1391, Longitude: -120.4561},
	}
	ls := LineString(points)
	assert.Equal(t, -120.5436, ls[0].X())
	assert.Equal(t, 38.0675, ls[0].Y())
	assert.Equal(t, points, PointsOf(ls))
}
