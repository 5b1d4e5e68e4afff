package models

// RawEvent is the typed intermediate a source adapter stages for one event.
// Fields are best-effort canonical-shaped; adapters do not validate them.
// Times stay strings here so a malformed value surfaces as a per-row error
// at the normalizer instead of aborting the whole source.
type RawEvent struct {
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	StartTime        string   `json:"start_time"` // RFC 3339
	EndTime          string   `json:"end_time"`   // RFC 3339
	AllDay           bool     `json:"all_day"`
	VenueName        string   `json:"venue_name"`
	AddressStreet    string   `json:"address_street,omitempty"`
	AddressCity      string   `json:"address_city"`
	AddressState     string   `json:"address_state"`
	AddressZip       string   `json:"address_zip,omitempty"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	URL              string   `json:"url,omitempty"`
	OrganizerName    string   `json:"organizer_name,omitempty"`
	OrganizerContact string   `json:"organizer_contact,omitempty"`
	Source           string   `json:"source"`
	SourceRef        string   `json:"source_ref,omitempty"`
	Region           string   `json:"region,omitempty"`
}

// RawBusiness is the typed intermediate a source adapter stages for one
// business.
type RawBusiness struct {
	Name                      string   `json:"name"`
	Category                  string   `json:"category,omitempty"`
	AddressStreet             string   `json:"address_street,omitempty"`
	AddressCity               string   `json:"address_city"`
	AddressState              string   `json:"address_state"`
	AddressZip                string   `json:"address_zip,omitempty"`
	Latitude                  *float64 `json:"latitude,omitempty"`
	Longitude                 *float64 `json:"longitude,omitempty"`
	Website                   string   `json:"website,omitempty"`
	Phone                     string   `json:"phone,omitempty"`
	Email                     string   `json:"email,omitempty"`
	SelfIdentifiedMuslimOwned bool     `json:"self_identified_muslim_owned"`
	HalalCertified            bool     `json:"halal_certified"`
	CertifierName             string   `json:"certifier_name,omitempty"`
	CertifierRef              string   `json:"certifier_ref,omitempty"`
	Cuisines                  []string `json:"cuisines,omitempty"`
	Source                    string   `json:"source"`
	SourceRef                 string   `json:"source_ref,omitempty"`
	Region                    string   `json:"region,omitempty"`
}
