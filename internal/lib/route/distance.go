package route

import (
	"math"

	"github.com/dpup/routepoi/internal/lib/geo"
	"github.com/dpup/routepoi/internal/logging"
)

// DistanceProjector reports how far along a route points lie, in kilometers.
type DistanceProjector struct {
	route *Route
	log   logging.Logger
}

// NewDistanceProjector creates a projector for r. A nil logger discards warnings.
func NewDistanceProjector(r *Route, log logging.Logger) *DistanceProjector {
	return &DistanceProjector{route: r, log: logging.OrNop(log)}
}

// DistanceAlongRoute returns the along-route distance of pt in km, rounded
// half-up to two decimals. It never fails: when the point cannot be located a
// warning is logged and 0 is returned.
func (p *DistanceProjector) DistanceAlongRoute(pt geo.Point) float64 {
	km, _, err := p.Measure(pt)
	if err != nil {
		p.log.Warnw("distance along route unavailable",
			"lat", pt.Latitude, "lon", pt.Longitude, "error", err)
		return 0
	}
	return km
}

// Measure returns the rounded along-route distance in km and the
// perpendicular offset from the route in meters.
func (p *DistanceProjector) Measure(pt geo.Point) (km, offsetMeters float64, err error) {
	pos, err := p.route.Locate(pt)
	if err != nil {
		return 0, 0, err
	}
	return RoundKm(pos.ArcLength), pos.Offset, nil
}

// Route returns the reference route.
func (p *DistanceProjector) Route() *Route {
	return p.route
}

// RoundKm converts meters to kilometers rounded half-up to two decimals.
func RoundKm(meters float64) float64 {
	return math.Floor(meters/10+0.5) / 100
}
