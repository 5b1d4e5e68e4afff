// Package osm imports businesses from OpenStreetMap through the Overpass API.
package osm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BayanLab/Backbone/internal/config"
	"github.com/BayanLab/Backbone/internal/models"
	"github.com/BayanLab/Backbone/internal/staging"
)

// DefaultEndpoint is the public Overpass interpreter.
const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

// Importer runs configured Overpass queries and stages the matching
// elements as raw businesses.
type Importer struct {
	store      *staging.Store
	cfg        *config.Config
	endpoint   string
	httpClient *http.Client
}

func NewImporter(store *staging.Store, cfg *config.Config) *Importer {
	return &Importer{
		store:    store,
		cfg:      cfg,
		endpoint: DefaultEndpoint,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// WithEndpoint overrides the Overpass endpoint (tests).
func (im *Importer) WithEndpoint(endpoint string) *Importer {
	im.endpoint = endpoint
	return im
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *overpassCenter   `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Run executes every enabled query. A failing query contributes zero
// records and never aborts the rest of the run.
func (im *Importer) Run(ctx context.Context, runID uuid.UUID) (int, error) {
	log.Printf("[osm_import] starting run=%s", runID)

	total := 0
	for _, q := range im.cfg.Sources.OSMQueries {
		if !q.IsEnabled() {
			continue
		}
		n, err := im.ingestQuery(ctx, runID, q)
		if err != nil {
			return total, err
		}
		total += n
	}

	log.Printf("[osm_import] completed run=%s count_out=%d", runID, total)
	return total, nil
}

func (im *Importer) ingestQuery(ctx context.Context, runID uuid.UUID, q config.OSMQuery) (int, error) {
	data, err := im.fetch(ctx, buildQuery(q))
	if err != nil {
		log.Printf("[osm_import] query %s failed: %v", q.ID, err)
		return 0, nil
	}

	region := q.Region
	if region == "" {
		region = im.cfg.Settings.DefaultRegion
	}

	var businesses []models.RawBusiness
	for _, el := range data.Elements {
		biz, ok := parseElement(el, region, im.cfg.Settings.DefaultRegion)
		if ok {
			businesses = append(businesses, biz)
		}
	}

	n, err := im.store.StageBusinesses(runID, businesses)
	if err != nil {
		return 0, err
	}
	log.Printf("[osm_import] ingested %d businesses from query %s run=%s", n, q.ID, runID)
	return n, nil
}

// buildQuery substitutes the box into the template. Overpass wants
// south,west,north,east; the config stores west,south,east,north.
func buildQuery(q config.OSMQuery) string {
	bboxStr := ""
	if len(q.BBox) == 4 {
		bboxStr = fmt.Sprintf("%v,%v,%v,%v", q.BBox[1], q.BBox[0], q.BBox[3], q.BBox[2])
	}
	return strings.ReplaceAll(q.QueryTemplate, "{{bbox}}", bboxStr)
}

func (im *Importer) fetch(ctx context.Context, query string) (*overpassResponse, error) {
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, im.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := im.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("overpass returned status %d", resp.StatusCode)
	}

	var out overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding overpass response: %w", err)
	}
	return &out, nil
}

// parseElement maps one tagged element onto the raw business shape.
// Elements without a name tag are skipped.
func parseElement(el overpassElement, region, defaultState string) (models.RawBusiness, bool) {
	name := el.Tags["name"]
	if name == "" {
		return models.RawBusiness{}, false
	}

	var lat, lon *float64
	switch {
	case el.Type == "node" && el.Lat != nil && el.Lon != nil:
		lat, lon = el.Lat, el.Lon
	case el.Center != nil:
		lat, lon = &el.Center.Lat, &el.Center.Lon
	}

	cuisines := splitTagList(el.Tags["cuisine"])
	halal := el.Tags["diet:halal"] == "yes"
	for _, c := range cuisines {
		if strings.Contains(strings.ToLower(c), "halal") {
			halal = true
		}
	}

	return models.RawBusiness{
		Name:           name,
		Category:       mapCategory(el.Tags),
		AddressStreet:  el.Tags["addr:street"],
		AddressCity:    el.Tags["addr:city"],
		AddressState:   stringOr(el.Tags["addr:state"], defaultState),
		AddressZip:     el.Tags["addr:postcode"],
		Latitude:       lat,
		Longitude:      lon,
		Website:        stringOr(el.Tags["website"], el.Tags["contact:website"]),
		Phone:          stringOr(el.Tags["phone"], el.Tags["contact:phone"]),
		HalalCertified: halal,
		Cuisines:       cuisines,
		Source:         models.SourceOSM,
		SourceRef:      fmt.Sprintf("osm_%s_%d", el.Type, el.ID),
		Region:         region,
	}, true
}

// mapCategory folds amenity/shop tags into the closed category enum.
func mapCategory(tags map[string]string) string {
	amenity := tags["amenity"]
	shop := tags["shop"]

	switch {
	case amenity == "restaurant" || amenity == "fast_food" || amenity == "cafe":
		return models.CategoryRestaurant
	case shop == "butcher":
		return models.CategoryButcher
	case shop == "supermarket" || shop == "convenience" || shop == "grocery":
		return models.CategoryGrocery
	case shop != "":
		return models.CategoryRetail
	default:
		return models.CategoryOther
	}
}

func splitTagList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func stringOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
