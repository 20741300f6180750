package services

import (
	"context"

	"github.com/dpup/routepoi/internal/clients/overpass"
	"github.com/dpup/routepoi/internal/lib/geo"
	"github.com/dpup/routepoi/internal/lib/poi"
)

// FeatureSource fetches candidates within a corridor. *overpass.Client
// implements it.
type FeatureSource interface {
	FetchPOIs(ctx context.Context, corridor overpass.Corridor) ([]poi.Candidate, error)
	FetchSettlements(ctx context.Context, corridor overpass.Corridor) ([]poi.Candidate, error)
	FetchBoundaries(ctx context.Context, corridor overpass.Corridor) ([]poi.Candidate, error)
}

// ElevationSource looks up terrain elevation, one value per point.
// *elevation.Client implements it.
type ElevationSource interface {
	Lookup(ctx context.Context, points []geo.Point) ([]*float64, error)
}
