package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dpup/routepoi/internal/cache"
	"github.com/dpup/routepoi/internal/clients/overpass"
	"github.com/dpup/routepoi/internal/lib/poi"
	"github.com/dpup/routepoi/internal/logging"
)

// CachedSource serves repeated corridor queries from a FeatureStore.
type CachedSource struct {
	name   string
	source FeatureSource
	store  *cache.FeatureStore
	log    logging.Logger
}

// NewCachedSource wraps source. name prefixes every cache key.
func NewCachedSource(name string, source FeatureSource, store *cache.FeatureStore, log logging.Logger) *CachedSource {
	return &CachedSource{name: name, source: source, store: store, log: logging.OrNop(log)}
}

func (s *CachedSource) FetchPOIs(ctx context.Context, corridor overpass.Corridor) ([]poi.Candidate, error) {
	return s.fetch(ctx, "pois", corridor, s.source.FetchPOIs)
}

func (s *CachedSource) FetchSettlements(ctx context.Context, corridor overpass.Corridor) ([]poi.Candidate, error) {
	return s.fetch(ctx, "settlements", corridor, s.source.FetchSettlements)
}

func (s *CachedSource) FetchBoundaries(ctx context.Context, corridor overpass.Corridor) ([]poi.Candidate, error) {
	return s.fetch(ctx, "boundaries", corridor, s.source.FetchBoundaries)
}

type fetchFunc func(ctx context.Context, corridor overpass.Corridor) ([]poi.Candidate, error)

func (s *CachedSource) fetch(ctx context.Context, kind string, corridor overpass.Corridor, fetch fetchFunc) ([]poi.Candidate, error) {
	key := cache.FeatureKey(s.name, kind, corridorKey(corridor))

	cached, found, err := s.store.Get(key)
	if err != nil {
		s.log.Warnw("dropping unreadable cache entry", "key", key, "error", err)
		s.store.Delete(key)
	}
	if found {
		s.log.Debugw("cache hit", "kind", kind, "key", key, "candidates", len(cached))
		return cached, nil
	}

	candidates, err := fetch(ctx, corridor)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(key, candidates, s.name); err != nil {
		s.log.Warnw("failed to cache candidates", "key", key, "error", err)
	}
	return candidates, nil
}

// Stats reports usage of the underlying store.
func (s *CachedSource) Stats() cache.CacheStats {
	return s.store.Stats()
}

func corridorKey(c overpass.Corridor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "r=%.1f", c.RadiusMeters)
	for _, p := range c.Path {
		fmt.Fprintf(&b, ";%.6f,%.6f", p.Latitude, p.Longitude)
	}
	return b.String()
}
