// Package csvseed ingests events and businesses from seed CSV files.
package csvseed

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

// Loader stages seed CSV rows. Adapters shape fields best-effort and leave
// validation to the DQ stage.
type Loader struct {
	store *staging.Store
	cfg   *config.Config
}

func NewLoader(store *staging.Store, cfg *config.Config) *Loader {
	return &Loader{store: store, cfg: cfg}
}

// RunEvents ingests every enabled events seed file for the run.
func (l *Loader) RunEvents(runID uuid.UUID) (int, error) {
	log.Printf("[csv_loader] ingesting events run=%s", runID)

	total := 0
	for _, src := range l.cfg.Sources.CSVSources.Events {
		if !src.IsEnabled() {
			continue
		}
		events, err := l.loadEvents(src)
		if err != nil {
			log.Printf("[csv_loader] source %s failed: %v", src.ID, err)
			continue
		}
		n, err := l.store.StageEvents(runID, events)
		if err != nil {
			return total, err
		}
		log.Printf("[csv_loader] loaded %d events from %s", n, src.Path)
		total += n
	}
	return total, nil
}

// RunBusinesses ingests every enabled businesses seed file for the run.
func (l *Loader) RunBusinesses(runID uuid.UUID) (int, error) {
	log.Printf("[csv_loader] ingesting businesses run=%s", runID)

	total := 0
	for _, src := range l.cfg.Sources.CSVSources.Businesses {
		if !src.IsEnabled() {
			continue
		}
		businesses, err := l.loadBusinesses(src)
		if err != nil {
			log.Printf("[csv_loader] source %s failed: %v", src.ID, err)
			continue
		}
		n, err := l.store.StageBusinesses(runID, businesses)
		if err != nil {
			return total, err
		}
		log.Printf("[csv_loader] loaded %d businesses from %s", n, src.Path)
		total += n
	}
	return total, nil
}

func (l *Loader) loadEvents(src config.CSVSource) ([]models.RawEvent, error) {
	rows, get, err := l.readCSV(src.Path)
	if err != nil || rows == nil {
		return nil, err
	}

	defaultState := l.cfg.Settings.DefaultRegion
	var events []models.RawEvent
	for i := range rows {
		g := func(name string) string { return get(i, name) }
		events = append(events, models.RawEvent{
			Title:            g("title"),
			Description:      g("description"),
			StartTime:        g("start_time"),
			EndTime:          g("end_time"),
			AllDay:           strings.EqualFold(g("all_day"), "true"),
			VenueName:        g("venue_name"),
			AddressStreet:    g("address_street"),
			AddressCity:      g("address_city"),
			AddressState:     stringOr(g("address_state"), defaultState),
			AddressZip:       g("address_zip"),
			Latitude:         parseFloat(g("latitude")),
			Longitude:        parseFloat(g("longitude")),
			URL:              g("url"),
			OrganizerName:    g("organizer_name"),
			OrganizerContact: g("organizer_contact"),
			Source:           models.SourceCSV,
			SourceRef:        stringOr(g("id"), fmt.Sprintf("csv_%d", len(events))),
			Region:           src.Region,
		})
	}
	return events, nil
}

func (l *Loader) loadBusinesses(src config.CSVSource) ([]models.RawBusiness, error) {
	rows, get, err := l.readCSV(src.Path)
	if err != nil || rows == nil {
		return nil, err
	}

	defaultState := l.cfg.Settings.DefaultRegion
	var businesses []models.RawBusiness
	for i := range rows {
		g := func(name string) string { return get(i, name) }
		businesses = append(businesses, models.RawBusiness{
			Name:                      g("name"),
			Category:                  stringOr(g("category"), models.CategoryOther),
			AddressStreet:             g("address_street"),
			AddressCity:               g("address_city"),
			AddressState:              stringOr(g("address_state"), defaultState),
			AddressZip:                g("address_zip"),
			Latitude:                  parseFloat(g("latitude")),
			Longitude:                 parseFloat(g("longitude")),
			Website:                   g("website"),
			Phone:                     g("phone"),
			Email:                     g("email"),
			SelfIdentifiedMuslimOwned: strings.EqualFold(g("self_identified_muslim_owned"), "true"),
			HalalCertified:            strings.EqualFold(g("halal_certified"), "true"),
			CertifierName:             g("certifier_name"),
			CertifierRef:              g("certifier_ref"),
			Source:                    models.SourceCSV,
			SourceRef:                 stringOr(g("id"), fmt.Sprintf("csv_%d", len(businesses))),
			Region:                    src.Region,
		})
	}
	return businesses, nil
}

// readCSV reads a seed file into records plus a header-indexed getter.
// A missing file is a logged warning contributing zero records.
func (l *Loader) readCSV(path string) ([][]string, func(row int, col string) string, error) {
	fullPath := filepath.Join(l.cfg.Settings.SeedDir, path)

	f, err := os.Open(fullPath)
	if os.IsNotExist(err) {
		log.Printf("[csv_loader] CSV file not found: %s", fullPath)
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", fullPath, err)
	}
	if len(records) < 2 {
		return nil, nil, nil
	}

	header := records[0]
	// Handle BOM on first header cell
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}

	rows := records[1:]
	get := func(row int, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rows[row]) {
			return ""
		}
		return strings.TrimSpace(rows[row][i])
	}
	return rows, get, nil
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
