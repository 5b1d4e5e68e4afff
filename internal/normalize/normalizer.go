// Package normalize converts staged raw records into the canonical schema.
package normalize

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BayanLab/Backbone/internal/config"
	"github.com/BayanLab/Backbone/internal/models"
	"github.com/BayanLab/Backbone/internal/staging"
)

// Mutable display fields refreshed on upsert conflict. Identity and audit
// fields are never touched after insert.
var (
	eventUpdateColumns    = []string{"title", "description", "updated_at"}
	businessUpdateColumns = []string{"name", "category", "updated_at"}
)

// Normalizer pulls a run's unprocessed staging rows and upserts them into
// the canonical store. Row-level failures are recorded on the staging row
// and never block other rows. Reprocessing a processed partition is a no-op.
type Normalizer struct {
	db        *gorm.DB
	store     *staging.Store
	cfg       *config.Config
	cityCaser cases.Caser
}

func New(db *gorm.DB, store *staging.Store, cfg *config.Config) *Normalizer {
	return &Normalizer{
		db:        db,
		store:     store,
		cfg:       cfg,
		cityCaser: cases.Title(language.AmericanEnglish),
	}
}

// Run normalizes both families for the run.
func (n *Normalizer) Run(runID uuid.UUID) (eventsOut, businessesOut int, err error) {
	eventsOut, err = n.NormalizeEvents(runID)
	if err != nil {
		return eventsOut, 0, err
	}
	businessesOut, err = n.NormalizeBusinesses(runID)
	return eventsOut, businessesOut, err
}

// NormalizeEvents maps the run's unprocessed staging events into canonical
// rows and returns the count normalized.
func (n *Normalizer) NormalizeEvents(runID uuid.UUID) (int, error) {
	log.Printf("[normalizer] normalizing events run=%s", runID)

	rows, err := n.store.UnprocessedEvents(runID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, row := range rows {
		if err := n.normalizeEventRow(row); err != nil {
			log.Printf("[normalizer] failed to normalize event %s: %v", row.StagingID, err)
			if markErr := n.store.MarkEventError(row.StagingID, err.Error()); markErr != nil {
				return count, fmt.Errorf("recording row error: %w", markErr)
			}
			continue
		}
		if err := n.store.MarkEventProcessed(row.StagingID); err != nil {
			return count, fmt.Errorf("marking row processed: %w", err)
		}
		count++
	}

	log.Printf("[normalizer] normalized %d events run=%s", count, runID)
	return count, nil
}

func (n *Normalizer) normalizeEventRow(row models.StagingEvent) error {
	var raw models.RawEvent
	if err := json.Unmarshal(row.RawPayload, &raw); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	start, err := parseTime(raw.StartTime)
	if err != nil {
		return fmt.Errorf("start_time: %w", err)
	}
	end, err := parseTime(raw.EndTime)
	if err != nil {
		return fmt.Errorf("end_time: %w", err)
	}

	event := models.Event{
		EventID:          n.eventIdentity(raw.Source, raw.SourceRef),
		Title:            strings.TrimSpace(raw.Title),
		Description:      optional(raw.Description),
		StartTime:        start,
		EndTime:          end,
		AllDay:           raw.AllDay,
		VenueName:        strings.TrimSpace(raw.VenueName),
		AddressStreet:    optional(raw.AddressStreet),
		AddressCity:      n.normalizeCity(raw.AddressCity),
		AddressState:     strings.ToUpper(strings.TrimSpace(raw.AddressState)),
		AddressZip:       optional(raw.AddressZip),
		Latitude:         raw.Latitude,
		Longitude:        raw.Longitude,
		URL:              optional(raw.URL),
		OrganizerName:    optional(raw.OrganizerName),
		OrganizerContact: optional(raw.OrganizerContact),
		Source:           raw.Source,
		SourceRef:        optional(raw.SourceRef),
		Region:           n.defaultRegion(raw.Region),
	}

	return n.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns(eventUpdateColumns),
	}).Create(&event).Error
}

// NormalizeBusinesses maps the run's unprocessed staging businesses into
// canonical rows and returns the count normalized.
func (n *Normalizer) NormalizeBusinesses(runID uuid.UUID) (int, error) {
	log.Printf("[normalizer] normalizing businesses run=%s", runID)

	rows, err := n.store.UnprocessedBusinesses(runID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, row := range rows {
		if err := n.normalizeBusinessRow(row); err != nil {
			log.Printf("[normalizer] failed to normalize business %s: %v", row.StagingID, err)
			if markErr := n.store.MarkBusinessError(row.StagingID, err.Error()); markErr != nil {
				return count, fmt.Errorf("recording row error: %w", markErr)
			}
			continue
		}
		if err := n.store.MarkBusinessProcessed(row.StagingID); err != nil {
			return count, fmt.Errorf("marking row processed: %w", err)
		}
		count++
	}

	log.Printf("[normalizer] normalized %d businesses run=%s", count, runID)
	return count, nil
}

func (n *Normalizer) normalizeBusinessRow(row models.StagingBusiness) error {
	var raw models.RawBusiness
	if err := json.Unmarshal(row.RawPayload, &raw); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	category := strings.ToLower(strings.TrimSpace(raw.Category))
	if category == "" {
		category = models.CategoryOther
	}

	business := models.Business{
		BusinessID:                n.businessIdentity(raw.Source, raw.SourceRef),
		Name:                      strings.TrimSpace(raw.Name),
		Category:                  category,
		AddressStreet:             optional(raw.AddressStreet),
		AddressCity:               n.normalizeCity(raw.AddressCity),
		AddressState:              strings.ToUpper(strings.TrimSpace(raw.AddressState)),
		AddressZip:                optional(raw.AddressZip),
		Latitude:                  raw.Latitude,
		Longitude:                 raw.Longitude,
		Website:                   optional(raw.Website),
		Phone:                     optional(raw.Phone),
		Email:                     optional(raw.Email),
		SelfIdentifiedMuslimOwned: raw.SelfIdentifiedMuslimOwned,
		HalalCertified:            raw.HalalCertified,
		CertifierName:             optional(raw.CertifierName),
		CertifierRef:              optional(raw.CertifierRef),
		Cuisines:                  raw.Cuisines,
		Source:                    raw.Source,
		SourceRef:                 optional(raw.SourceRef),
		Region:                    n.defaultRegion(raw.Region),
	}

	return n.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "business_id"}},
		DoUpdates: clause.AssignmentColumns(businessUpdateColumns),
	}).Create(&business).Error
}

// eventIdentity reuses the canonical id when the store already knows the
// (source, source_ref) pair, otherwise mints a new one. Source systems that
// do not keep source_ref stable across edits will therefore produce
// duplicate rows; that is the accepted contract, not something to paper
// over with content matching.
func (n *Normalizer) eventIdentity(source, sourceRef string) uuid.UUID {
	if sourceRef != "" {
		var existing models.Event
		err := n.db.Select("event_id").
			Where("source = ? AND source_ref = ?", source, sourceRef).
			First(&existing).Error
		if err == nil {
			return existing.EventID
		}
	}
	return uuid.New()
}

func (n *Normalizer) businessIdentity(source, sourceRef string) uuid.UUID {
	if sourceRef != "" {
		var existing models.Business
		err := n.db.Select("business_id").
			Where("source = ? AND source_ref = ?", source, sourceRef).
			First(&existing).Error
		if err == nil {
			return existing.BusinessID
		}
	}
	return uuid.New()
}

func (n *Normalizer) normalizeCity(city string) string {
	return n.cityCaser.String(strings.TrimSpace(city))
}

func (n *Normalizer) defaultRegion(region string) string {
	if region == "" {
		return n.cfg.Settings.DefaultRegion
	}
	return region
}

// parseTime accepts the timestamp shapes our adapters emit.
func parseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", v)
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
