package correlate

import (
	"github.com/dpup/routepoi/internal/lib/geo"
	"github.com/dpup/routepoi/internal/lib/poi"
	"github.com/dpup/routepoi/internal/lib/settlement"
)

// Classification represents the relationship between a candidate and the route
type Classification string

const (
	OnRoute Classification = "on_route" // within the on-route threshold (default 100m)
	Nearby  Classification = "nearby"   // within the buffer distance
	Distant Classification = "distant"  // beyond the buffer distance

	// Unlocated records could not be placed on the route; their distance is 0.
	Unlocated Classification = "unlocated"
)

// Record is a candidate correlated with the route.
type Record struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Category       poi.Category      `json:"category"`
	Subtype        string            `json:"subtype"`
	Location       geo.Point         `json:"location"`
	DistanceKm     float64           `json:"distance_km"`
	OffsetMeters   float64           `json:"offset_meters"`
	Classification Classification    `json:"classification"`
	Settlement     *settlement.Match `json:"settlement,omitempty"`
	Elevation      *float64          `json:"elevation_meters,omitempty"`
	Attributes     poi.Attributes    `json:"attributes,omitempty"`
}

// Skip records a candidate that produced no record and why.
type Skip struct {
	CandidateID string `json:"candidate_id"`
	Name        string `json:"name"`
	Reason      string `json:"reason"`
}

// Result is the outcome of a pipeline run. Records are ordered by distance
// along the route; equal distances keep candidate input order.
type Result struct {
	RunID   string   `json:"run_id"`
	Records []Record `json:"records"`
	Skipped []Skip   `json:"skipped"`
	Dropped int      `json:"dropped"`
}

// Counts tallies records per classification.
func (r *Result) Counts() map[Classification]int {
	counts := make(map[Classification]int, 4)
	for _, rec := range r.Records {
		counts[rec.Classification]++
	}
	return counts
}

// SettlementResolver finds the nearest settlement for a point.
// *settlement.Matcher implements it.
type SettlementResolver interface {
	Nearest(pt geo.Point) settlement.Match
}
