// Package report renders correlation results for people and map tools.
package report

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/dpup/routepoi/internal/lib/correlate"
	"github.com/dpup/routepoi/internal/lib/geo"
)

// Summary describes a run for report headers.
type Summary struct {
	Title          string
	RunID          string
	LengthKm       float64
	BufferMeters   float64
	Chunks         int
	FailedChunks   int
	Skipped        int
	Dropped        int
	Classification map[correlate.Classification]int
}

// GoogleMapsURL links to a map search for the point.
func GoogleMapsURL(p geo.Point) string {
	q := url.Values{}
	q.Set("api", "1")
	q.Set("query", Coordinates(p))
	return "https://www.google.com/maps/search/?" + q.Encode()
}

// Coordinates formats a point as "lat,lon" with six decimals.
func Coordinates(p geo.Point) string {
	return fmt.Sprintf("%.6f,%.6f", p.Latitude, p.Longitude)
}

func formatElevation(e *float64) string {
	if e == nil {
		return ""
	}
	return strconv.FormatFloat(*e, 'f', 0, 64)
}

// settlementColumns returns name, distance, locality, region and country.
func settlementColumns(rec correlate.Record) [5]string {
	m := rec.Settlement
	if m == nil {
		return [5]string{}
	}
	return [5]string{m.Name, fmt.Sprintf("%.2f", m.DistanceKm), m.Locality, m.Region, m.Country}
}
