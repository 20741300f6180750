package cache

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/dpup/routepoi/internal/lib/poi"
)

// FeatureStore caches candidate sets as GeoJSON feature collections.
type FeatureStore struct {
	cache *Cache
	ttl   time.Duration
}

// NewFeatureStore creates a store whose entries live for ttl.
func NewFeatureStore(cache *Cache, ttl time.Duration) *FeatureStore {
	return &FeatureStore{cache: cache, ttl: ttl}
}

// FeatureKey builds a cache key from a source, a feature kind and the query
// parts that determine the result.
func FeatureKey(source, kind string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%s:%s:%x", source, kind, hash)
}

// Get returns the cached candidates for key, if fresh.
func (s *FeatureStore) Get(key string) ([]poi.Candidate, bool, error) {
	var fc geojson.FeatureCollection
	found, err := s.cache.Get(key, &fc)
	if err != nil || !found {
		return nil, false, err
	}
	candidates, _ := poi.FromFeatureCollection(&fc)
	return candidates, true, nil
}

// Set stores candidates under key.
func (s *FeatureStore) Set(key string, candidates []poi.Candidate, source string) error {
	return s.cache.Set(key, poi.FeatureCollection(candidates), s.ttl, source)
}

// Delete drops the entry for key.
func (s *FeatureStore) Delete(key string) {
	s.cache.Delete(key)
}

// Stats reports the underlying cache usage.
func (s *FeatureStore) Stats() CacheStats {
	return s.cache.Stats()
}

// Cache returns the underlying cache.
func (s *FeatureStore) Cache() *Cache {
	return s.cache
}
