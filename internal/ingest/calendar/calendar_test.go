package calendar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/BayanLab/Backbone/internal/config"
	"github.com/BayanLab/Backbone/internal/db"
	"github.com/BayanLab/Backbone/internal/models"
	"github.com/BayanLab/Backbone/internal/staging"
)

func testStore(t *testing.T) (*staging.Store, *gorm.DB) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return staging.NewStore(gdb), gdb
}

func TestFeedStrategyFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	src := config.CalendarSource{
		ID:        "test_feed",
		URL:       srv.URL,
		VenueName: "Colorado Muslim Society",
		City:      "Denver",
		Region:    "CO",
	}

	events, err := newFeedStrategy("CO").Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	first := events[0]
	if first.Title != "Friday Night Halaqa" {
		t.Errorf("Title = %q", first.Title)
	}
	if first.SourceRef != "event-1@masjid.example.org" {
		t.Errorf("SourceRef = %q", first.SourceRef)
	}
	if first.VenueName != "Colorado Muslim Society" || first.AddressCity != "Denver" {
		t.Errorf("venue/city not taken from source config: %q / %q", first.VenueName, first.AddressCity)
	}
	if first.AddressStreet != "2071 S Parker Rd" {
		t.Errorf("LOCATION should map to street: %q", first.AddressStreet)
	}
	if first.Source != models.SourceICS {
		t.Errorf("Source = %q", first.Source)
	}

	if !events[1].AllDay {
		t.Error("DATE-valued DTSTART should mark an all-day event")
	}
	if events[1].StartTime != events[1].EndTime {
		t.Error("missing DTEND should default to DTSTART")
	}
}

func TestFeedStrategyResolvesTZID(t *testing.T) {
	// WordPress calendar exports emit local times with a TZID param.
	feed := "BEGIN:VCALENDAR\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:local@masjid.example.org\r\n" +
		"SUMMARY:Maghrib Program\r\n" +
		"DTSTART;TZID=America/Denver:20260911T190000\r\n" +
		"DTEND;TZID=America/Denver:20260911T210000\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	events, err := newFeedStrategy("CO").Fetch(context.Background(), config.CalendarSource{ID: "t", URL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	// 19:00 Denver is 01:00 UTC the next day during daylight saving.
	if events[0].StartTime != "2026-09-12T01:00:00Z" {
		t.Errorf("StartTime = %q, want 2026-09-12T01:00:00Z", events[0].StartTime)
	}
	if events[0].EndTime != "2026-09-12T03:00:00Z" {
		t.Errorf("EndTime = %q, want 2026-09-12T03:00:00Z", events[0].EndTime)
	}
}

func TestFeedStrategySkipsMalformedComponent(t *testing.T) {
	feed := "BEGIN:VCALENDAR\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:no-start@masjid.example.org\r\n" +
		"SUMMARY:Missing DTSTART\r\n" +
		"END:VEVENT\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:ok@masjid.example.org\r\n" +
		"SUMMARY:Valid Event\r\n" +
		"DTSTART:20260911T190000Z\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	events, err := newFeedStrategy("CO").Fetch(context.Background(), config.CalendarSource{ID: "t", URL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected the valid event only, got %d", len(events))
	}
	if events[0].SourceRef != "ok@masjid.example.org" {
		t.Errorf("wrong event survived: %q", events[0].SourceRef)
	}
}

func TestProviderStrategyFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calendars/masjid-aurora-events/events" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"events":[{"id":"ev-9","title":"Youth Night","start":"2026-09-12T18:00:00Z","end":"2026-09-12T20:00:00Z","location":"10958 E Bethany Dr"}]}`))
	}))
	defer srv.Close()

	src := config.CalendarSource{
		ID:         "masjid_aurora",
		Endpoint:   srv.URL,
		CalendarID: "masjid-aurora-events",
		VenueName:  "Colorado Muslim Community Center",
		City:       "Aurora",
		Region:     "CO",
	}

	events, err := newProviderStrategy("test-key", "CO").Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].SourceRef != "ev-9" {
		t.Errorf("provider event id should become source_ref, got %q", events[0].SourceRef)
	}
	if events[0].Title != "Youth Night" {
		t.Errorf("Title = %q", events[0].Title)
	}
}

func TestProviderStrategyRequiresKey(t *testing.T) {
	_, err := newProviderStrategy("", "CO").Fetch(context.Background(), config.CalendarSource{ID: "x"})
	if err == nil {
		t.Fatal("expected error without CALENDAR_API_KEY")
	}
}

func TestPollerRunContinuesPastFailedSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	store, gdb := testStore(t)
	cfg := &config.Config{
		Settings: config.Settings{DefaultRegion: "CO"},
		Sources: config.SourcesConfig{
			ICSSources: []config.CalendarSource{
				{ID: "dead_feed", URL: "http://127.0.0.1:1/nothing", Region: "CO"},
				{ID: "live_feed", URL: srv.URL, Region: "CO"},
			},
		},
	}

	runID := uuid.New()
	n, err := NewPoller(store, cfg).Run(context.Background(), runID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 records from the live feed, got %d", n)
	}

	var count int64
	if err := gdb.Model(&models.StagingEvent{}).Where("ingest_run_id = ?", runID).Count(&count).Error; err != nil {
		t.Fatalf("counting staged rows: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 staged rows, got %d", count)
	}
}

func TestPollerSkipsDisabledSources(t *testing.T) {
	store, _ := testStore(t)
	off := false
	cfg := &config.Config{
		Sources: config.SourcesConfig{
			ICSSources: []config.CalendarSource{
				{ID: "off_feed", URL: "http://127.0.0.1:1/nothing", Enabled: &off},
			},
		},
	}

	n, err := NewPoller(store, cfg).Run(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 0 {
		t.Fatalf("disabled source should contribute nothing, got %d", n)
	}
}
