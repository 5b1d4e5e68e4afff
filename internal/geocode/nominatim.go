package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const nominatimBaseURL = "https://nominatim.openstreetmap.org/search"

// Nominatim wraps the OpenStreetMap Nominatim search API. No key required;
// the usage policy caps us at one request per second, which the geocoding
// stage's rate limiter honors.
type Nominatim struct {
	userAgent  string
	baseURL    string
	httpClient *http.Client
}

func NewNominatim(userAgent string) *Nominatim {
	return &Nominatim{
		userAgent: userAgent,
		baseURL:   nominatimBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithBaseURL overrides the API endpoint (tests).
func (n *Nominatim) WithBaseURL(u string) *Nominatim {
	n.baseURL = u
	return n
}

func (n *Nominatim) Name() string { return "osm" }

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode converts a free-form address string into coordinates.
func (n *Nominatim) Geocode(ctx context.Context, address string) (*Point, error) {
	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding nominatim response: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrNoResult
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("bad latitude in nominatim response: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("bad longitude in nominatim response: %w", err)
	}

	return &Point{Lat: lat, Lon: lon}, nil
}
