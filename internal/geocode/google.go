package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const googleBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Google wraps the Google Maps Geocoding API.
type Google struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewGoogle(apiKey string) *Google {
	return &Google{
		apiKey:  apiKey,
		baseURL: googleBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithBaseURL overrides the API endpoint (tests).
func (g *Google) WithBaseURL(u string) *Google {
	g.baseURL = u
	return g
}

func (g *Google) Name() string { return "google" }

type googleResponse struct {
	Results []googleResult `json:"results"`
	Status  string         `json:"status"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

// Geocode converts a free-form address string into coordinates.
func (g *Google) Geocode(ctx context.Context, address string) (*Point, error) {
	u := fmt.Sprintf("%s?address=%s&key=%s", g.baseURL, url.QueryEscape(address), g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding API returned status %d", resp.StatusCode)
	}

	var geoResp googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&geoResp); err != nil {
		return nil, fmt.Errorf("decoding geocoding response: %w", err)
	}

	if geoResp.Status == "ZERO_RESULTS" || len(geoResp.Results) == 0 {
		return nil, ErrNoResult
	}
	if geoResp.Status != "OK" {
		return nil, fmt.Errorf("geocoding failed: status=%s", geoResp.Status)
	}

	loc := geoResp.Results[0].Geometry.Location
	return &Point{Lat: loc.Lat, Lon: loc.Lng}, nil
}
