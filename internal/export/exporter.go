// Package export snapshots the canonical store into immutable, versioned
// JSON artifacts, one file per region per entity kind.
package export

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/BayanLab/Backbone/internal/config"
	"github.com/BayanLab/Backbone/internal/models"
)

// SchemaVersion tags every snapshot artifact.
const SchemaVersion = "1.0"

type snapshot struct {
	Version     string      `json:"version"`
	Region      string      `json:"region"`
	Count       int         `json:"count"`
	GeneratedAt string      `json:"generated_at"`
	Items       interface{} `json:"items"`
}

type addressItem struct {
	Street *string `json:"street"`
	City   string  `json:"city"`
	State  string  `json:"state"`
	Zip    *string `json:"zip"`
}

type venueItem struct {
	Name      string      `json:"name"`
	Address   addressItem `json:"address"`
	Latitude  *float64    `json:"latitude"`
	Longitude *float64    `json:"longitude"`
}

type organizerItem struct {
	Name    *string `json:"name"`
	Contact *string `json:"contact"`
}

type eventItem struct {
	EventID     string        `json:"event_id"`
	Title       string        `json:"title"`
	Description *string       `json:"description"`
	StartTime   string        `json:"start_time"`
	EndTime     string        `json:"end_time"`
	AllDay      bool          `json:"all_day"`
	Venue       venueItem     `json:"venue"`
	URL         *string       `json:"url"`
	Organizer   organizerItem `json:"organizer"`
	Source      string        `json:"source"`
	SourceRef   *string       `json:"source_ref"`
	Region      string        `json:"region"`
	UpdatedAt   string        `json:"updated_at"`
}

type businessItem struct {
	BusinessID                string      `json:"business_id"`
	Name                      string      `json:"name"`
	Category                  string      `json:"category"`
	Address                   addressItem `json:"address"`
	Latitude                  *float64    `json:"latitude"`
	Longitude                 *float64    `json:"longitude"`
	Website                   *string     `json:"website"`
	Phone                     *string     `json:"phone"`
	Email                     *string     `json:"email"`
	SelfIdentifiedMuslimOwned bool        `json:"self_identified_muslim_owned"`
	HalalCertified            bool        `json:"halal_certified"`
	CertifierName             *string     `json:"certifier_name"`
	CertifierRef              *string     `json:"certifier_ref"`
	Placekey                  *string     `json:"placekey"`
	Source                    string      `json:"source"`
	SourceRef                 *string     `json:"source_ref"`
	Region                    string      `json:"region"`
	UpdatedAt                 string      `json:"updated_at"`
}

// Exporter writes per-region snapshots of the canonical store.
type Exporter struct {
	db  *gorm.DB
	cfg *config.Config
	now func() time.Time
}

func NewExporter(db *gorm.DB, cfg *config.Config) *Exporter {
	return &Exporter{db: db, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// ExportEvents writes {region}-events.json and returns the item count.
func (e *Exporter) ExportEvents(region string) (int, error) {
	var rows []models.Event
	err := e.db.
		Where("region = ?", region).
		Order("updated_at DESC, event_id").
		Find(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("loading events for export: %w", err)
	}

	items := make([]eventItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, eventItem{
			EventID:     r.EventID.String(),
			Title:       r.Title,
			Description: r.Description,
			StartTime:   r.StartTime.UTC().Format(time.RFC3339),
			EndTime:     r.EndTime.UTC().Format(time.RFC3339),
			AllDay:      r.AllDay,
			Venue: venueItem{
				Name: r.VenueName,
				Address: addressItem{
					Street: r.AddressStreet,
					City:   r.AddressCity,
					State:  r.AddressState,
					Zip:    r.AddressZip,
				},
				Latitude:  r.Latitude,
				Longitude: r.Longitude,
			},
			URL: r.URL,
			Organizer: organizerItem{
				Name:    r.OrganizerName,
				Contact: r.OrganizerContact,
			},
			Source:    r.Source,
			SourceRef: r.SourceRef,
			Region:    r.Region,
			UpdatedAt: r.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	if err := e.write(region, "events", len(items), items); err != nil {
		return 0, err
	}
	return len(items), nil
}

// ExportBusinesses writes {region}-businesses.json and returns the item count.
func (e *Exporter) ExportBusinesses(region string) (int, error) {
	var rows []models.Business
	err := e.db.
		Where("region = ?", region).
		Order("updated_at DESC, business_id").
		Find(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("loading businesses for export: %w", err)
	}

	items := make([]businessItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, businessItem{
			BusinessID: r.BusinessID.String(),
			Name:       r.Name,
			Category:   r.Category,
			Address: addressItem{
				Street: r.AddressStreet,
				City:   r.AddressCity,
				State:  r.AddressState,
				Zip:    r.AddressZip,
			},
			Latitude:                  r.Latitude,
			Longitude:                 r.Longitude,
			Website:                   r.Website,
			Phone:                     r.Phone,
			Email:                     r.Email,
			SelfIdentifiedMuslimOwned: r.SelfIdentifiedMuslimOwned,
			HalalCertified:            r.HalalCertified,
			CertifierName:             r.CertifierName,
			CertifierRef:              r.CertifierRef,
			Placekey:                  r.Placekey,
			Source:                    r.Source,
			SourceRef:                 r.SourceRef,
			Region:                    r.Region,
			UpdatedAt:                 r.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	if err := e.write(region, "businesses", len(items), items); err != nil {
		return 0, err
	}
	return len(items), nil
}

// write lands the snapshot atomically: serialize to a temp file in the
// exports dir, then rename into place. Consumers only ever see a complete
// artifact.
func (e *Exporter) write(region, kind string, count int, items interface{}) error {
	data := snapshot{
		Version:     SchemaVersion,
		Region:      region,
		Count:       count,
		GeneratedAt: e.now().Format(time.RFC3339),
		Items:       items,
	}

	dir := e.cfg.Settings.ExportsDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating exports dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, fmt.Sprintf(".%s-%s-*.json", region, kind))
	if err != nil {
		return fmt.Errorf("creating temp export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing export: %w", err)
	}

	final := filepath.Join(dir, fmt.Sprintf("%s-%s.json", region, kind))
	if err := os.Rename(tmp.Name(), final); err != nil {
		return fmt.Errorf("publishing export: %w", err)
	}

	log.Printf("[exporter] exported %d %s to %s", count, kind, final)
	return nil
}
