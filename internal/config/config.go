package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dpup/routepoi/internal/lib/route"
	"github.com/dpup/routepoi/internal/logging"
)

// EnvPrefix prefixes environment overrides. Nested keys use a double
// underscore, e.g. ROUTEPOI_CORRELATION__BUFFER_DISTANCE_METERS.
const EnvPrefix = "ROUTEPOI_"

// Config represents the complete configuration
type Config struct {
	Correlation CorrelationConfig `koanf:"correlation"`
	Overpass    OverpassConfig    `koanf:"overpass"`
	Elevation   ElevationConfig   `koanf:"elevation"`
	Cache       CacheConfig       `koanf:"cache"`
	Logging     LoggingConfig     `koanf:"logging"`
	Server      ServerConfig      `koanf:"server"`
}

// CorrelationConfig holds the route geometry and pipeline settings
type CorrelationConfig struct {
	BufferDistanceMeters float64 `koanf:"buffer_distance_meters"`
	ChunkLengthMeters    float64 `koanf:"chunk_length_meters"`
	ChunkOverlapMeters   float64 `koanf:"chunk_overlap_meters"`
	OnRouteMeters        float64 `koanf:"on_route_meters"`
	Workers              int     `koanf:"workers"`
	DropDistant          bool    `koanf:"drop_distant"`
}

// OverpassConfig holds Overpass API settings and the feature types to fetch
type OverpassConfig struct {
	URL                     string        `koanf:"url"`
	Timeout                 time.Duration `koanf:"timeout"`
	MinInterval             time.Duration `koanf:"min_interval"`
	SimplifyToleranceMeters float64       `koanf:"simplify_tolerance_meters"`
	ShopTypes               []string      `koanf:"shop_types"`
	CampsiteTypes           []string      `koanf:"campsite_types"`
	SettlementTypes         []string      `koanf:"settlement_types"`
	AdminLevels             []string      `koanf:"admin_levels"`
}

// ElevationConfig holds elevation lookup settings
type ElevationConfig struct {
	Enabled         bool          `koanf:"enabled"`
	OpenMeteoURL    string        `koanf:"open_meteo_url"`
	OpenTopoDataURL string        `koanf:"opentopodata_url"`
	Timeout         time.Duration `koanf:"timeout"`
	MinInterval     time.Duration `koanf:"min_interval"`
}

// CacheConfig holds fetched feature cache settings
type CacheConfig struct {
	TTL             time.Duration `koanf:"ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr           string        `koanf:"addr"`
	CorsOrigins    []string      `koanf:"cors_origins"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Correlation: CorrelationConfig{
			BufferDistanceMeters: 500,
			ChunkLengthMeters:    50000,
			ChunkOverlapMeters:   1000,
			OnRouteMeters:        100,
			Workers:              4,
		},
		Overpass: OverpassConfig{
			URL:                     "https://overpass-api.de/api/interpreter",
			Timeout:                 60 * time.Second,
			MinInterval:             1 * time.Second,
			SimplifyToleranceMeters: 25,
			ShopTypes: []string{
				"supermarket", "convenience", "grocery", "general", "food", "bakery",
				"butcher", "greengrocer", "marketplace", "mall", "department_store",
			},
			CampsiteTypes:   []string{"camp_site", "caravan_site"},
			SettlementTypes: []string{"city", "town", "village"},
			AdminLevels:     []string{"2", "4", "6"},
		},
		Elevation: ElevationConfig{
			OpenMeteoURL:    "https://api.open-meteo.com/v1/elevation",
			OpenTopoDataURL: "https://api.opentopodata.org/v1/srtm90m",
			Timeout:         15 * time.Second,
			MinInterval:     1 * time.Second,
		},
		Cache: CacheConfig{
			TTL:             24 * time.Hour,
			CleanupInterval: 1 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			CorsOrigins:    []string{"*"},
			RequestTimeout: 60 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// ROUTEPOI_ environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultValues(DefaultConfig()), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps ROUTEPOI_CORRELATION__BUFFER_DISTANCE_METERS to
// correlation.buffer_distance_meters.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func defaultValues(c *Config) map[string]interface{} {
	return map[string]interface{}{
		"correlation.buffer_distance_meters": c.Correlation.BufferDistanceMeters,
		"correlation.chunk_length_meters":    c.Correlation.ChunkLengthMeters,
		"correlation.chunk_overlap_meters":   c.Correlation.ChunkOverlapMeters,
		"correlation.on_route_meters":        c.Correlation.OnRouteMeters,
		"correlation.workers":                c.Correlation.Workers,
		"correlation.drop_distant":           c.Correlation.DropDistant,

		"overpass.url":                       c.Overpass.URL,
		"overpass.timeout":                   c.Overpass.Timeout,
		"overpass.min_interval":              c.Overpass.MinInterval,
		"overpass.simplify_tolerance_meters": c.Overpass.SimplifyToleranceMeters,
		"overpass.shop_types":                c.Overpass.ShopTypes,
		"overpass.campsite_types":            c.Overpass.CampsiteTypes,
		"overpass.settlement_types":          c.Overpass.SettlementTypes,
		"overpass.admin_levels":              c.Overpass.AdminLevels,

		"elevation.enabled":          c.Elevation.Enabled,
		"elevation.open_meteo_url":   c.Elevation.OpenMeteoURL,
		"elevation.opentopodata_url": c.Elevation.OpenTopoDataURL,
		"elevation.timeout":          c.Elevation.Timeout,
		"elevation.min_interval":     c.Elevation.MinInterval,

		"cache.ttl":              c.Cache.TTL,
		"cache.cleanup_interval": c.Cache.CleanupInterval,

		"logging.level":       c.Logging.Level,
		"logging.development": c.Logging.Development,

		"server.addr":            c.Server.Addr,
		"server.cors_origins":    c.Server.CorsOrigins,
		"server.request_timeout": c.Server.RequestTimeout,
	}
}

// Validate rejects settings the correlation engine cannot work with.
func (c *Config) Validate() error {
	cc := c.Correlation
	switch {
	case !positive(cc.BufferDistanceMeters):
		return fmt.Errorf("%w: correlation.buffer_distance_meters must be positive, got %v", route.ErrInvalidParameter, cc.BufferDistanceMeters)
	case !positive(cc.ChunkLengthMeters):
		return fmt.Errorf("%w: correlation.chunk_length_meters must be positive, got %v", route.ErrInvalidParameter, cc.ChunkLengthMeters)
	case !(cc.ChunkOverlapMeters >= 0) || math.IsInf(cc.ChunkOverlapMeters, 0):
		return fmt.Errorf("%w: correlation.chunk_overlap_meters must not be negative, got %v", route.ErrInvalidParameter, cc.ChunkOverlapMeters)
	case !(cc.OnRouteMeters >= 0):
		return fmt.Errorf("%w: correlation.on_route_meters must not be negative, got %v", route.ErrInvalidParameter, cc.OnRouteMeters)
	case cc.Workers < 1:
		return fmt.Errorf("%w: correlation.workers must be at least 1, got %d", route.ErrInvalidParameter, cc.Workers)
	}
	if c.Overpass.URL == "" {
		return fmt.Errorf("%w: overpass.url is required", route.ErrInvalidParameter)
	}
	return nil
}

// LoggingOptions converts logging settings for logging.New.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.Logging.Level, Development: c.Logging.Development}
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
