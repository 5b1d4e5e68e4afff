package staging

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/BayanLab/Backbone/internal/db"
	"github.com/BayanLab/Backbone/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
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
	return gdb
}

func TestStageEventsRoundTrip(t *testing.T) {
	store := NewStore(testDB(t))
	runID := uuid.New()

	n, err := store.StageEvents(runID, []models.RawEvent{
		{Title: "Jummah Prayer", Source: models.SourceICS, SourceRef: "uid-1", Region: "CO"},
		{Title: "Eid Bazaar", Source: models.SourceCSV, Region: "CO"},
	})
	if err != nil {
		t.Fatalf("StageEvents: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 staged events, got %d", n)
	}

	rows, err := store.UnprocessedEvents(runID)
	if err != nil {
		t.Fatalf("UnprocessedEvents: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 unprocessed events, got %d", len(rows))
	}
	if rows[0].SourceRef == nil || *rows[0].SourceRef != "uid-1" {
		t.Errorf("expected source_ref uid-1, got %v", rows[0].SourceRef)
	}
	if rows[1].SourceRef != nil {
		t.Errorf("expected nil source_ref for row without one, got %q", *rows[1].SourceRef)
	}
	if rows[0].Processed {
		t.Error("freshly staged row should not be processed")
	}
	if len(rows[0].RawPayload) == 0 {
		t.Error("raw payload should carry the marshaled record")
	}
}

func TestStageEventsEmptyBatch(t *testing.T) {
	store := NewStore(testDB(t))

	n, err := store.StageEvents(uuid.New(), nil)
	if err != nil {
		t.Fatalf("StageEvents with no records: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
}

func TestRunPartitionIsolation(t *testing.T) {
	store := NewStore(testDB(t))
	runA := uuid.New()
	runB := uuid.New()

	if _, err := store.StageBusinesses(runA, []models.RawBusiness{{Name: "Ali Baba Grill", Source: models.SourceCSV}}); err != nil {
		t.Fatalf("staging run A: %v", err)
	}
	if _, err := store.StageBusinesses(runB, []models.RawBusiness{{Name: "Zabiha Meats", Source: models.SourceCertifier}}); err != nil {
		t.Fatalf("staging run B: %v", err)
	}

	rows, err := store.UnprocessedBusinesses(runA)
	if err != nil {
		t.Fatalf("UnprocessedBusinesses: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row in run A partition, got %d", len(rows))
	}
}

func TestMarkProcessedAndError(t *testing.T) {
	gdb := testDB(t)
	store := NewStore(gdb)
	runID := uuid.New()

	if _, err := store.StageEvents(runID, []models.RawEvent{
		{Title: "Halaqa", Source: models.SourceICS, SourceRef: "a"},
		{Title: "Fundraiser", Source: models.SourceICS, SourceRef: "b"},
	}); err != nil {
		t.Fatalf("StageEvents: %v", err)
	}

	rows, err := store.UnprocessedEvents(runID)
	if err != nil {
		t.Fatalf("UnprocessedEvents: %v", err)
	}

	if err := store.MarkEventProcessed(rows[0].StagingID); err != nil {
		t.Fatalf("MarkEventProcessed: %v", err)
	}
	if err := store.MarkEventError(rows[1].StagingID, "missing start time"); err != nil {
		t.Fatalf("MarkEventError: %v", err)
	}

	remaining, err := store.UnprocessedEvents(runID)
	if err != nil {
		t.Fatalf("UnprocessedEvents after marks: %v", err)
	}
	// Errored rows stay unprocessed for diagnosis.
	if len(remaining) != 1 {
		t.Fatalf("expected 1 unprocessed row, got %d", len(remaining))
	}
	if remaining[0].ErrorMessage == nil || *remaining[0].ErrorMessage != "missing start time" {
		t.Errorf("expected error message on errored row, got %v", remaining[0].ErrorMessage)
	}

	var processed models.StagingEvent
	if err := gdb.Where("staging_id = ?", rows[0].StagingID).First(&processed).Error; err != nil {
		t.Fatalf("fetching processed row: %v", err)
	}
	if !processed.Processed {
		t.Error("expected row to be marked processed")
	}
}
