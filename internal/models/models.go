package models

import (
	"time"

	"github.com/google/uuid"
)

// Source kinds for events.
const (
	SourceICS = "ics"
	SourceCSV = "csv"
)

// Additional source kinds for businesses.
const (
	SourceOSM       = "osm"
	SourceCertifier = "certifier"
)

// Business categories (closed enum).
const (
	CategoryRestaurant = "restaurant"
	CategoryService    = "service"
	CategoryRetail     = "retail"
	CategoryGrocery    = "grocery"
	CategoryButcher    = "butcher"
	CategoryOther      = "other"
)

// Categories lists every valid business category.
var Categories = []string{
	CategoryRestaurant, CategoryService, CategoryRetail,
	CategoryGrocery, CategoryButcher, CategoryOther,
}

// ValidCategory reports whether c is one of the closed enum values.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// StagingEvent is one raw event record landed by a source adapter.
// Immutable once written except for Processed/ErrorMessage, which only the
// normalizer touches. Partitioned by IngestRunID; never updated by a later run.
type StagingEvent struct {
	StagingID    uuid.UUID `gorm:"type:uuid;primaryKey;column:staging_id"`
	IngestRunID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Source       string    `gorm:"not null"`
	SourceRef    *string
	RawPayload   JSONB `gorm:"type:jsonb"`
	IngestedAt   time.Time
	Processed    bool `gorm:"not null;default:false;index"`
	ErrorMessage *string
}

func (StagingEvent) TableName() string { return "staging_events" }

// StagingBusiness is one raw business record landed by a source adapter.
type StagingBusiness struct {
	StagingID    uuid.UUID `gorm:"type:uuid;primaryKey;column:staging_id"`
	IngestRunID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Source       string    `gorm:"not null"`
	SourceRef    *string
	RawPayload   JSONB `gorm:"type:jsonb"`
	IngestedAt   time.Time
	Processed    bool `gorm:"not null;default:false;index"`
	ErrorMessage *string
}

func (StagingBusiness) TableName() string { return "staging_businesses" }

// Build statuses.
const (
	BuildRunning = "running"
	BuildSuccess = "success"
	BuildFailed  = "failed"
)

// Build types (dataset families).
const (
	BuildEvents     = "events"
	BuildBusinesses = "businesses"
)

// BuildMetadata is the audit trail for one pipeline run of one dataset
// family. Written only by the pipeline runner; the read API treats the
// latest successful row's CompletedAt as the data-freshness signal.
type BuildMetadata struct {
	ID               uint      `gorm:"primaryKey"`
	IngestRunID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_build_run_type"`
	BuildType        string    `gorm:"not null;uniqueIndex:idx_build_run_type"`
	StartedAt        time.Time `gorm:"not null"`
	CompletedAt      *time.Time
	Status           string `gorm:"not null;default:'running';index"`
	RecordsProcessed int
	ErrorLog         *string
}

func (BuildMetadata) TableName() string { return "build_metadata" }
