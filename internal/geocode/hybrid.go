package geocode

import (
	"context"
	"log"
)

// Hybrid tries the higher-accuracy provider first and falls back to the
// free one, preserving whichever result returns first. Without a Google
// key it degrades to Nominatim only.
type Hybrid struct {
	google    *Google
	nominatim *Nominatim
}

func NewHybrid(googleAPIKey, userAgent string) *Hybrid {
	h := &Hybrid{nominatim: NewNominatim(userAgent)}
	if googleAPIKey != "" {
		h.google = NewGoogle(googleAPIKey)
	}
	return h
}

func (h *Hybrid) Name() string { return "hybrid" }

func (h *Hybrid) Geocode(ctx context.Context, address string) (*Point, error) {
	if h.google != nil {
		pt, err := h.google.Geocode(ctx, address)
		if err == nil {
			return pt, nil
		}
		log.Printf("[geocoder] google failed for %q, trying OSM: %v", address, err)
	}
	return h.nominatim.Geocode(ctx, address)
}
