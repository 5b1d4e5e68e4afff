package config

// SourcesConfig mirrors sources.yaml: every external source the ingest
// phase may pull from, with per-source enable flags.
type SourcesConfig struct {
	ICSSources         []CalendarSource `yaml:"ics_sources"`
	CalendarAPISources []CalendarSource `yaml:"calendar_api_sources"`
	CSVSources         CSVSources       `yaml:"csv_sources"`
	OSMQueries         []OSMQuery       `yaml:"osm_queries"`
	CertifierFeeds     []CertifierFeed  `yaml:"certifier_feeds"`
}

// CalendarSource describes one calendar feed. Feed-mode sources set URL;
// provider-API sources set Endpoint and CalendarID.
type CalendarSource struct {
	ID         string `yaml:"id"`
	Enabled    *bool  `yaml:"enabled"`
	URL        string `yaml:"url"`
	Endpoint   string `yaml:"endpoint"`
	CalendarID string `yaml:"calendar_id"`
	VenueName  string `yaml:"venue_name"`
	City       string `yaml:"city"`
	Region     string `yaml:"region"`
}

func (s CalendarSource) IsEnabled() bool { return enabled(s.Enabled) }

// CSVSources lists seed files per dataset family.
type CSVSources struct {
	Events     []CSVSource `yaml:"events"`
	Businesses []CSVSource `yaml:"businesses"`
}

// CSVSource describes one seed CSV, path relative to SeedDir.
type CSVSource struct {
	ID      string `yaml:"id"`
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
	Region  string `yaml:"region"`
}

func (s CSVSource) IsEnabled() bool { return enabled(s.Enabled) }

// OSMQuery describes one Overpass query. The template's {{bbox}}
// placeholder is replaced with the box in south,west,north,east order.
type OSMQuery struct {
	ID            string    `yaml:"id"`
	Enabled       *bool     `yaml:"enabled"`
	Region        string    `yaml:"region"`
	QueryTemplate string    `yaml:"query_template"`
	BBox          []float64 `yaml:"bbox"` // west, south, east, north
}

func (s OSMQuery) IsEnabled() bool { return enabled(s.Enabled) }

// CertifierFeed describes one halal-certifier CSV export.
type CertifierFeed struct {
	ID      string `yaml:"id"`
	Enabled *bool  `yaml:"enabled"`
	Name    string `yaml:"name"`
	Path    string `yaml:"path"`
	Region  string `yaml:"region"`
}

func (s CertifierFeed) IsEnabled() bool { return enabled(s.Enabled) }

// Sources are enabled unless the config says otherwise.
func enabled(b *bool) bool { return b == nil || *b }
