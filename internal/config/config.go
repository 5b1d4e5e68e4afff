package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
)

var ErrMissingDatabaseURL = errors.New("DATABASE_URL environment variable is required")

// Settings holds process-level configuration loaded from the environment.
// It is constructed once in main and passed into each component; nothing in
// the pipeline reads the environment after startup.
type Settings struct {
	DatabaseURL string

	ConfigDir  string
	SeedDir    string
	ExportsDir string

	DefaultRegion string

	// Geocoding
	GeocodingProvider string // "osm", "google", or "hybrid"
	GoogleAPIKey      string
	GeocoderUserAgent string
	GeocoderRateWait  time.Duration // minimum gap between lookups
	GeocoderBatchSize int           // rows per geocoding pass

	// Placekey enrichment (optional)
	PlacekeyAPIKey string

	// Calendar provider API mode (optional)
	CalendarAPIKey string
}

// LoadSettings reads settings from environment variables.
//
// Environment variables:
//   - DATABASE_URL: postgres DSN (required for the batch entry points)
//   - CONFIG_DIR: directory holding sources.yaml / regions.yaml / dq_rules.yaml (default: config)
//   - SEED_DIR: directory holding CSV seed files (default: seeds)
//   - EXPORTS_DIR: directory snapshots are written to (default: exports)
//   - DEFAULT_REGION: region stamped on records that carry none (default: CO)
//   - GEOCODING_PROVIDER: "osm", "google", or "hybrid" (default: "osm")
//   - GOOGLE_GEOCODING_API_KEY: required for "google", optional for "hybrid"
//   - GEOCODER_USER_AGENT: User-Agent sent to Nominatim (default: BayanLab/1.0)
//   - GEOCODER_RATE_LIMIT: seconds between lookups (default: 1.0)
//   - GEOCODER_BATCH_SIZE: rows geocoded per pass (default: 100)
//   - PLACEKEY_API_KEY: enables the Placekey stage when set
//   - CALENDAR_API_KEY: key for calendar sources in provider-API mode
func LoadSettings() Settings {
	s := Settings{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		ConfigDir:         envOr("CONFIG_DIR", "config"),
		SeedDir:           envOr("SEED_DIR", "seeds"),
		ExportsDir:        envOr("EXPORTS_DIR", "exports"),
		DefaultRegion:     envOr("DEFAULT_REGION", "CO"),
		GeocodingProvider: envOr("GEOCODING_PROVIDER", "osm"),
		GoogleAPIKey:      os.Getenv("GOOGLE_GEOCODING_API_KEY"),
		GeocoderUserAgent: envOr("GEOCODER_USER_AGENT", "BayanLab/1.0"),
		GeocoderRateWait:  time.Second,
		GeocoderBatchSize: 100,
		PlacekeyAPIKey:    os.Getenv("PLACEKEY_API_KEY"),
		CalendarAPIKey:    os.Getenv("CALENDAR_API_KEY"),
	}

	if v := os.Getenv("GEOCODER_RATE_LIMIT"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			s.GeocoderRateWait = time.Duration(secs * float64(time.Second))
		}
	}
	if v := os.Getenv("GEOCODER_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.GeocoderBatchSize = n
		}
	}

	return s
}

// Validate checks that settings required by the batch entry points are present.
func (s Settings) Validate() error {
	if s.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Config is the full run configuration: env settings plus the declarative
// YAML files describing sources, regions, and DQ rules. Loaded once per
// invocation.
type Config struct {
	Settings Settings
	Sources  SourcesConfig
	Regions  RegionsConfig
	DQ       DQRulesConfig
}

// Load builds the Config from settings plus the YAML files in ConfigDir.
func Load(settings Settings) (*Config, error) {
	cfg := &Config{Settings: settings}

	if err := readYAML(filepath.Join(settings.ConfigDir, "sources.yaml"), &cfg.Sources); err != nil {
		return nil, fmt.Errorf("loading sources config: %w", err)
	}
	if err := readYAML(filepath.Join(settings.ConfigDir, "regions.yaml"), &cfg.Regions); err != nil {
		return nil, fmt.Errorf("loading regions config: %w", err)
	}
	if err := readYAML(filepath.Join(settings.ConfigDir, "dq_rules.yaml"), &cfg.DQ); err != nil {
		return nil, fmt.Errorf("loading dq rules config: %w", err)
	}

	return cfg, nil
}

func readYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// RegionBBox returns the bounding box for a region, false if unconfigured.
func (c *Config) RegionBBox(region string) (BBox, bool) {
	r, ok := c.Regions.Regions[region]
	if !ok {
		return BBox{}, false
	}
	return r.BBox, true
}

// RegionNames returns all configured region names.
func (c *Config) RegionNames() []string {
	names := make([]string, 0, len(c.Regions.Regions))
	for name := range c.Regions.Regions {
		names = append(names, name)
	}
	return names
}
