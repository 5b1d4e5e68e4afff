// Package geocode fills missing coordinates on canonical rows through an
// external lookup, behind an interchangeable provider interface.
package geocode

import (
	"context"
	"errors"
	"log"

	"github.com/BayanLab/Backbone/internal/config"
)

// ErrNoResult means the provider answered but found nothing for the address.
var ErrNoResult = errors.New("no geocoding result")

// Point is a geocoded coordinate pair.
type Point struct {
	Lat float64
	Lon float64
}

// Provider turns a free-form address string into coordinates.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, address string) (*Point, error)
}

// NewProvider selects the lookup provider from settings.
//
// GEOCODING_PROVIDER values:
//   - "osm" (default): Nominatim, free, 1 req/s policy
//   - "google": Google Geocoding API, requires GOOGLE_GEOCODING_API_KEY
//   - "hybrid": Google first, Nominatim fallback
func NewProvider(s config.Settings) Provider {
	switch s.GeocodingProvider {
	case "google":
		if s.GoogleAPIKey == "" {
			log.Printf("[geocoder] GOOGLE_GEOCODING_API_KEY not set, falling back to OSM")
			return NewNominatim(s.GeocoderUserAgent)
		}
		return NewGoogle(s.GoogleAPIKey)
	case "hybrid":
		return NewHybrid(s.GoogleAPIKey, s.GeocoderUserAgent)
	default:
		return NewNominatim(s.GeocoderUserAgent)
	}
}
