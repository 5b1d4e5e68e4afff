package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Event is a canonical community event. Rows are born on first normalize,
// mutated in place by later normalize/geocode passes, never hard-deleted by
// the pipeline. Invariant (enforced by DQ, not by the schema): EndTime > StartTime.
type Event struct {
	EventID     uuid.UUID `gorm:"type:uuid;primaryKey;column:event_id"`
	Title       string    `gorm:"not null"`
	Description *string
	StartTime   time.Time `gorm:"not null"`
	EndTime     time.Time `gorm:"not null"`
	AllDay      bool      `gorm:"not null;default:false"`

	VenueName     string
	AddressStreet *string
	AddressCity   string
	AddressState  string
	AddressZip    *string

	Latitude  *float64
	Longitude *float64

	URL              *string
	OrganizerName    *string
	OrganizerContact *string

	Source    string  `gorm:"not null;index:idx_event_source_ref"`
	SourceRef *string `gorm:"index:idx_event_source_ref"`
	Region    string  `gorm:"not null;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Event) TableName() string { return "event_canonical" }

// HasCoordinates reports whether both coordinates are set.
func (e Event) HasCoordinates() bool { return e.Latitude != nil && e.Longitude != nil }

// Business is a canonical Muslim-owned or halal business.
type Business struct {
	BusinessID uuid.UUID `gorm:"type:uuid;primaryKey;column:business_id"`
	Name       string    `gorm:"not null"`
	Category   string    `gorm:"not null;default:'other'"`

	AddressStreet *string
	AddressCity   string
	AddressState  string
	AddressZip    *string

	Latitude  *float64
	Longitude *float64

	Website *string
	Phone   *string
	Email   *string

	SelfIdentifiedMuslimOwned bool `gorm:"not null;default:false"`
	HalalCertified            bool `gorm:"not null;default:false"`
	CertifierName             *string
	CertifierRef              *string

	// OSM cuisine tags, kept for internal filtering; not exported.
	Cuisines pq.StringArray `gorm:"type:text[]"`

	Placekey *string

	Source    string  `gorm:"not null;index:idx_business_source_ref"`
	SourceRef *string `gorm:"index:idx_business_source_ref"`
	Region    string  `gorm:"not null;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Business) TableName() string { return "business_canonical" }

// HasCoordinates reports whether both coordinates are set.
func (b Business) HasCoordinates() bool { return b.Latitude != nil && b.Longitude != nil }
