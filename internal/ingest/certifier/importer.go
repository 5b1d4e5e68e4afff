// Package certifier imports halal-certified businesses from certifier CSV
// exports. Every staged row is halal_certified with the certifier stamped.
package certifier

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/BayanLab/Backbone/internal/config"
	"github.com/BayanLab/Backbone/internal/models"
	"github.com/BayanLab/Backbone/internal/staging"
)

type Importer struct {
	store *staging.Store
	cfg   *config.Config
}

func NewImporter(store *staging.Store, cfg *config.Config) *Importer {
	return &Importer{store: store, cfg: cfg}
}

// Run ingests every enabled certifier feed for the run. A failing feed
// contributes zero records and never aborts the rest of the run.
func (im *Importer) Run(runID uuid.UUID) (int, error) {
	log.Printf("[certifier_import] starting run=%s", runID)

	total := 0
	for _, feed := range im.cfg.Sources.CertifierFeeds {
		if !feed.IsEnabled() {
			continue
		}
		businesses, err := im.loadFeed(feed)
		if err != nil {
			log.Printf("[certifier_import] certifier %s failed: %v", feed.ID, err)
			continue
		}
		n, err := im.store.StageBusinesses(runID, businesses)
		if err != nil {
			return total, err
		}
		log.Printf("[certifier_import] ingested %d businesses from certifier %s run=%s", n, feed.ID, runID)
		total += n
	}

	log.Printf("[certifier_import] completed run=%s count_out=%d", runID, total)
	return total, nil
}

func (im *Importer) loadFeed(feed config.CertifierFeed) ([]models.RawBusiness, error) {
	fullPath := filepath.Join(im.cfg.Settings.SeedDir, feed.Path)

	f, err := os.Open(fullPath)
	if os.IsNotExist(err) {
		log.Printf("[certifier_import] certifier CSV not found: %s", fullPath)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fullPath, err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}

	defaultState := im.cfg.Settings.DefaultRegion
	var businesses []models.RawBusiness
	for _, rec := range records[1:] {
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		certRef := get("cert_id")
		if certRef == "" {
			certRef = get("id")
		}

		businesses = append(businesses, models.RawBusiness{
			Name:          get("name"),
			Category:      stringOr(get("category"), models.CategoryRestaurant),
			AddressStreet: get("address_street"),
			AddressCity:   get("address_city"),
			AddressState:  stringOr(get("address_state"), defaultState),
			AddressZip:    get("address_zip"),
			Latitude:      parseFloat(get("latitude")),
			Longitude:     parseFloat(get("longitude")),
			Website:       get("website"),
			Phone:         get("phone"),
			Email:         get("email"),
			// Muslim ownership is unknown from a certifier export.
			SelfIdentifiedMuslimOwned: false,
			HalalCertified:            true,
			CertifierName:             feed.Name,
			CertifierRef:              certRef,
			Source:                    models.SourceCertifier,
			SourceRef:                 fmt.Sprintf("%s_%s", feed.Name, certRef),
			Region:                    feed.Region,
		})
	}
	return businesses, nil
}

func stringOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func parseFloat(v string) *float64 {
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}
