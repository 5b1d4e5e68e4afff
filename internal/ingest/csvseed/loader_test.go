package csvseed

import (
	"os"
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

func testLoader(t *testing.T, seedDir string, sources config.CSVSources) (*Loader, *staging.Store) {
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
	store := staging.NewStore(gdb)
	cfg := &config.Config{
		Settings: config.Settings{SeedDir: seedDir, DefaultRegion: "CO"},
		Sources:  config.SourcesConfig{CSVSources: sources},
	}
	return NewLoader(store, cfg), store
}

func writeSeed(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing seed file: %v", err)
	}
}

func TestRunEvents(t *testing.T) {
	dir := t.TempDir()
	writeSeed(t, dir, "events.csv",
		"id,title,start_time,end_time,venue_name,address_city,latitude,longitude\n"+
			"ev1,Friday Halaqa,2026-09-11T19:00:00,2026-09-11T21:00:00,Colorado Muslim Society,Denver,39.68,-104.89\n"+
			",Eid Bazaar,2026-09-19,2026-09-19,Crescent View Academy,Aurora,,\n")

	loader, store := testLoader(t, dir, config.CSVSources{
		Events: []config.CSVSource{{ID: "seed", Path: "events.csv", Region: "CO"}},
	})

	runID := uuid.New()
	n, err := loader.RunEvents(runID)
	if err != nil {
		t.Fatalf("RunEvents: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 staged events, got %d", n)
	}

	rows, err := store.UnprocessedEvents(runID)
	if err != nil {
		t.Fatalf("UnprocessedEvents: %v", err)
	}
	if rows[0].SourceRef == nil || *rows[0].SourceRef != "ev1" {
		t.Errorf("id column should become source_ref, got %v", rows[0].SourceRef)
	}
	// Rows without an id get a synthetic positional ref.
	if rows[1].SourceRef == nil || *rows[1].SourceRef != "csv_1" {
		t.Errorf("expected synthetic ref csv_1, got %v", rows[1].SourceRef)
	}
}

func TestRunBusinesses(t *testing.T) {
	dir := t.TempDir()
	writeSeed(t, dir, "biz.csv",
		"id,name,category,address_city,self_identified_muslim_owned,halal_certified,certifier_name\n"+
			"b1,Ali Baba Grill,restaurant,Golden,true,false,\n"+
			"b2,Zabiha Meats,butcher,Aurora,true,true,HFSAA\n")

	loader, store := testLoader(t, dir, config.CSVSources{
		Businesses: []config.CSVSource{{ID: "seed", Path: "biz.csv", Region: "CO"}},
	})

	runID := uuid.New()
	n, err := loader.RunBusinesses(runID)
	if err != nil {
		t.Fatalf("RunBusinesses: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 staged businesses, got %d", n)
	}

	rows, err := store.UnprocessedBusinesses(runID)
	if err != nil {
		t.Fatalf("UnprocessedBusinesses: %v", err)
	}
	if rows[0].Source != models.SourceCSV {
		t.Errorf("Source = %q", rows[0].Source)
	}
}

func TestMissingSeedFileIsNotFatal(t *testing.T) {
	loader, _ := testLoader(t, t.TempDir(), config.CSVSources{
		Events: []config.CSVSource{{ID: "ghost", Path: "nope.csv", Region: "CO"}},
	})

	n, err := loader.RunEvents(uuid.New())
	if err != nil {
		t.Fatalf("missing file should not fail the run: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
}

func TestReadCSVHandlesBOMAndRaggedRows(t *testing.T) {
	dir := t.TempDir()
	writeSeed(t, dir, "bom.csv", "\ufeffid,title,start_time\nev1,Halaqa,2026-09-11T19:00:00\nev2,Short Row\n")

	loader, store := testLoader(t, dir, config.CSVSources{
		Events: []config.CSVSource{{ID: "seed", Path: "bom.csv", Region: "CO"}},
	})

	runID := uuid.New()
	n, err := loader.RunEvents(runID)
	if err != nil {
		t.Fatalf("RunEvents: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}

	rows, err := store.UnprocessedEvents(runID)
	if err != nil {
		t.Fatalf("UnprocessedEvents: %v", err)
	}
	if rows[0].SourceRef == nil || *rows[0].SourceRef != "ev1" {
		t.Errorf("BOM should be stripped from the first header cell, got %v", rows[0].SourceRef)
	}
}
