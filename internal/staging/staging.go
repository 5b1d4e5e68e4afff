// Package staging is the write-once landing area for raw, unvalidated
// records. Rows are partitioned by ingest run id; a partition is owned by
// the run that created it and is never cross-mutated. Only the normalizer
// flips Processed / sets ErrorMessage.
package staging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BayanLab/Backbone/internal/models"
)

// Store appends raw records and hands unprocessed ones to the normalizer.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// StageEvents appends raw event records for a run and returns the count written.
func (s *Store) StageEvents(runID uuid.UUID, records []models.RawEvent) (int, error) {
	rows := make([]models.StagingEvent, 0, len(records))
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("marshaling raw event: %w", err)
		}
		rows = append(rows, models.StagingEvent{
			StagingID:   uuid.New(),
			IngestRunID: runID,
			Source:      rec.Source,
			SourceRef:   optional(rec.SourceRef),
			RawPayload:  models.JSONB(payload),
			IngestedAt:  time.Now().UTC(),
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := s.db.Create(&rows).Error; err != nil {
		return 0, fmt.Errorf("inserting staging events: %w", err)
	}
	return len(rows), nil
}

// StageBusinesses appends raw business records for a run and returns the count written.
func (s *Store) StageBusinesses(runID uuid.UUID, records []models.RawBusiness) (int, error) {
	rows := make([]models.StagingBusiness, 0, len(records))
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("marshaling raw business: %w", err)
		}
		rows = append(rows, models.StagingBusiness{
			StagingID:   uuid.New(),
			IngestRunID: runID,
			Source:      rec.Source,
			SourceRef:   optional(rec.SourceRef),
			RawPayload:  models.JSONB(payload),
			IngestedAt:  time.Now().UTC(),
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := s.db.Create(&rows).Error; err != nil {
		return 0, fmt.Errorf("inserting staging businesses: %w", err)
	}
	return len(rows), nil
}

// UnprocessedEvents returns the run's staging events the normalizer has not
// consumed, in retrieval order.
func (s *Store) UnprocessedEvents(runID uuid.UUID) ([]models.StagingEvent, error) {
	var rows []models.StagingEvent
	err := s.db.
		Where("ingest_run_id = ? AND processed = ?", runID, false).
		Order("ingested_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetching unprocessed staging events: %w", err)
	}
	return rows, nil
}

// UnprocessedBusinesses returns the run's staging businesses the normalizer
// has not consumed.
func (s *Store) UnprocessedBusinesses(runID uuid.UUID) ([]models.StagingBusiness, error) {
	var rows []models.StagingBusiness
	err := s.db.
		Where("ingest_run_id = ? AND processed = ?", runID, false).
		Order("ingested_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetching unprocessed staging businesses: %w", err)
	}
	return rows, nil
}

// MarkEventProcessed seals a staging event once the normalizer consumed it.
func (s *Store) MarkEventProcessed(stagingID uuid.UUID) error {
	return s.db.Model(&models.StagingEvent{}).
		Where("staging_id = ?", stagingID).
		Update("processed", true).Error
}

// MarkEventError records a per-row failure. The row stays unprocessed for
// diagnosis; it is not retried automatically.
func (s *Store) MarkEventError(stagingID uuid.UUID, msg string) error {
	return s.db.Model(&models.StagingEvent{}).
		Where("staging_id = ?", stagingID).
		Update("error_message", msg).Error
}

// MarkBusinessProcessed seals a staging business once the normalizer consumed it.
func (s *Store) MarkBusinessProcessed(stagingID uuid.UUID) error {
	return s.db.Model(&models.StagingBusiness{}).
		Where("staging_id = ?", stagingID).
		Update("processed", true).Error
}

// MarkBusinessError records a per-row failure on a staging business.
func (s *Store) MarkBusinessError(stagingID uuid.UUID, msg string) error {
	return s.db.Model(&models.StagingBusiness{}).
		Where("staging_id = ?", stagingID).
		Update("error_message", msg).Error
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
