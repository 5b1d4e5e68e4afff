package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/BayanLab/Backbone/internal/config"
	"github.com/BayanLab/Backbone/internal/db"
	"github.com/BayanLab/Backbone/internal/dq"
	"github.com/BayanLab/Backbone/internal/export"
	"github.com/BayanLab/Backbone/internal/geocode"
	"github.com/BayanLab/Backbone/internal/models"
	"github.com/BayanLab/Backbone/internal/normalize"
	"github.com/BayanLab/Backbone/internal/placekey"
	"github.com/BayanLab/Backbone/internal/staging"
)

// stubProvider geocodes every address to a fixed point inside the CO box.
type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) Geocode(context.Context, string) (*geocode.Point, error) {
	return &geocode.Point{Lat: 39.7, Lon: -104.9}, nil
}

func testRunner(t *testing.T) (*Runner, *gorm.DB, string) {
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

	exportsDir := t.TempDir()
	cfg := &config.Config{
		Settings: config.Settings{
			DefaultRegion:     "CO",
			ExportsDir:        exportsDir,
			GeocoderBatchSize: 100,
		},
		Regions: config.RegionsConfig{
			Regions: map[string]config.Region{
				"CO": {
					Timezone: "America/Denver",
					States:   []string{"CO"},
					BBox:     config.BBox{North: 41.0, South: 37.0, East: -102.0, West: -109.1},
				},
			},
		},
	}

	store := staging.NewStore(gdb)
	r := &Runner{
		DB:         gdb,
		Cfg:        cfg,
		Normalizer: normalize.New(gdb, store, cfg),
		Geocoder:   geocode.NewGeocoder(gdb, cfg, stubProvider{}),
		Placekeyer: placekey.NewPlacekeyer(gdb, cfg),
		Checker:    dq.NewChecker(gdb, cfg),
		Exporter:   export.NewExporter(gdb, cfg),
	}
	return r, gdb, exportsDir
}

func stageEvents(gdb *gorm.DB, events ...models.RawEvent) IngestFunc {
	store := staging.NewStore(gdb)
	return func(_ context.Context, runID uuid.UUID) (int, error) {
		return store.StageEvents(runID, events)
	}
}

func stageBusinesses(gdb *gorm.DB, businesses ...models.RawBusiness) IngestFunc {
	store := staging.NewStore(gdb)
	return func(_ context.Context, runID uuid.UUID) (int, error) {
		return store.StageBusinesses(runID, businesses)
	}
}

func buildRow(t *testing.T, gdb *gorm.DB, buildType string) models.BuildMetadata {
	t.Helper()
	var row models.BuildMetadata
	if err := gdb.Where("build_type = ?", buildType).First(&row).Error; err != nil {
		t.Fatalf("fetching build metadata: %v", err)
	}
	return row
}

func TestRunEvents(t *testing.T) {
	r, gdb, exportsDir := testRunner(t)
	r.EventSources = []IngestFunc{stageEvents(gdb, models.RawEvent{
		Title:        "Friday Halaqa",
		StartTime:    "2026-10-02T19:00:00",
		EndTime:      "2026-10-02T21:00:00",
		VenueName:    "Colorado Muslim Society",
		AddressCity:  "Denver",
		AddressState: "CO",
		Source:       models.SourceICS,
		SourceRef:    "uid-1",
		Region:       "CO",
	})}

	if err := r.RunEvents(context.Background()); err != nil {
		t.Fatalf("RunEvents: %v", err)
	}

	var canonical int64
	gdb.Model(&models.Event{}).Count(&canonical)
	if canonical != 1 {
		t.Fatalf("expected 1 canonical event, got %d", canonical)
	}

	// The stub provider filled the missing coordinates before the gate.
	var ev models.Event
	if err := gdb.First(&ev).Error; err != nil {
		t.Fatalf("fetching event: %v", err)
	}
	if ev.Latitude == nil || *ev.Latitude != 39.7 {
		t.Errorf("Latitude = %v", ev.Latitude)
	}

	row := buildRow(t, gdb, models.BuildEvents)
	if row.Status != models.BuildSuccess {
		t.Errorf("build status = %q", row.Status)
	}
	if row.CompletedAt == nil {
		t.Error("completed_at should be set")
	}
	if row.RecordsProcessed != 1 {
		t.Errorf("records_processed = %d", row.RecordsProcessed)
	}

	if _, err := os.Stat(filepath.Join(exportsDir, "CO-events.json")); err != nil {
		t.Errorf("expected export artifact: %v", err)
	}
}

func TestRunBusinesses(t *testing.T) {
	r, gdb, exportsDir := testRunner(t)
	r.BusinessSources = []IngestFunc{stageBusinesses(gdb, models.RawBusiness{
		Name:           "Zabiha Meats",
		Category:       "butcher",
		AddressCity:    "Aurora",
		AddressState:   "CO",
		HalalCertified: true,
		CertifierName:  "HFSAA",
		Source:         models.SourceCertifier,
		SourceRef:      "HFSAA_HF-2201",
		Region:         "CO",
	})}

	if err := r.RunBusinesses(context.Background()); err != nil {
		t.Fatalf("RunBusinesses: %v", err)
	}

	row := buildRow(t, gdb, models.BuildBusinesses)
	if row.Status != models.BuildSuccess {
		t.Errorf("build status = %q", row.Status)
	}

	if _, err := os.Stat(filepath.Join(exportsDir, "CO-businesses.json")); err != nil {
		t.Errorf("expected export artifact: %v", err)
	}
}

func TestDQFailureBlocksExport(t *testing.T) {
	r, gdb, exportsDir := testRunner(t)
	r.BusinessSources = []IngestFunc{stageBusinesses(gdb, models.RawBusiness{
		Name:         "Rolling Kebab",
		Category:     "food-truck",
		AddressCity:  "Denver",
		AddressState: "CO",
		Source:       models.SourceCSV,
		SourceRef:    "ft-1",
		Region:       "CO",
	})}

	err := r.RunBusinesses(context.Background())
	if !errors.Is(err, ErrGateFailed) {
		t.Fatalf("expected ErrGateFailed, got %v", err)
	}

	row := buildRow(t, gdb, models.BuildBusinesses)
	if row.Status != models.BuildFailed {
		t.Errorf("build status = %q", row.Status)
	}
	if row.ErrorLog == nil {
		t.Fatal("failed build should carry an error log")
	}

	if _, err := os.Stat(filepath.Join(exportsDir, "CO-businesses.json")); !os.IsNotExist(err) {
		t.Error("gate failure must not publish an artifact")
	}
}

func TestStagingFailureFailsBuild(t *testing.T) {
	r, gdb, _ := testRunner(t)
	r.EventSources = []IngestFunc{func(context.Context, uuid.UUID) (int, error) {
		return 0, errors.New("staging store unavailable")
	}}

	if err := r.RunEvents(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	row := buildRow(t, gdb, models.BuildEvents)
	if row.Status != models.BuildFailed {
		t.Errorf("build status = %q", row.Status)
	}
}

func TestPanicNeverLeavesBuildRunning(t *testing.T) {
	r, gdb, _ := testRunner(t)
	r.EventSources = []IngestFunc{func(context.Context, uuid.UUID) (int, error) {
		panic("adapter exploded")
	}}

	if err := r.RunEvents(context.Background()); err == nil {
		t.Fatal("expected error from recovered panic")
	}

	row := buildRow(t, gdb, models.BuildEvents)
	if row.Status != models.BuildFailed {
		t.Errorf("build status = %q, must never stick at running", row.Status)
	}
}
