// Package pipeline orchestrates ingest → normalize → enrich → validate →
// publish for each dataset family, and owns the build-metadata audit trail.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BayanLab/Backbone/internal/config"
	"github.com/BayanLab/Backbone/internal/dq"
	"github.com/BayanLab/Backbone/internal/export"
	"github.com/BayanLab/Backbone/internal/geocode"
	"github.com/BayanLab/Backbone/internal/ingest/calendar"
	"github.com/BayanLab/Backbone/internal/ingest/certifier"
	"github.com/BayanLab/Backbone/internal/ingest/csvseed"
	"github.com/BayanLab/Backbone/internal/ingest/osm"
	"github.com/BayanLab/Backbone/internal/models"
	"github.com/BayanLab/Backbone/internal/normalize"
	"github.com/BayanLab/Backbone/internal/placekey"
	"github.com/BayanLab/Backbone/internal/staging"
)

// ErrGateFailed reports that DQ checks blocked publication. It is a
// reportable pipeline failure, not a process defect.
var ErrGateFailed = errors.New("DQ checks failed")

// IngestFunc is one source adapter contributing to a family's ingest
// phase. Adapters swallow their own source failures; an IngestFunc error
// means the staging store itself failed.
type IngestFunc func(ctx context.Context, runID uuid.UUID) (int, error)

// Runner drives one dataset family at a time. The two families touch
// disjoint canonical tables and disjoint metadata rows, so callers may run
// them concurrently.
type Runner struct {
	DB  *gorm.DB
	Cfg *config.Config

	EventSources    []IngestFunc
	BusinessSources []IngestFunc

	Normalizer *normalize.Normalizer
	Geocoder   *geocode.Geocoder
	Placekeyer *placekey.Placekeyer
	Checker    *dq.Checker
	Exporter   *export.Exporter
}

// New wires the full production stage set. Tests swap individual fields.
func New(db *gorm.DB, cfg *config.Config) *Runner {
	store := staging.NewStore(db)
	poller := calendar.NewPoller(store, cfg)
	loader := csvseed.NewLoader(store, cfg)
	osmImporter := osm.NewImporter(store, cfg)
	certImporter := certifier.NewImporter(store, cfg)

	return &Runner{
		DB:  db,
		Cfg: cfg,
		EventSources: []IngestFunc{
			poller.Run,
			func(_ context.Context, runID uuid.UUID) (int, error) { return loader.RunEvents(runID) },
		},
		BusinessSources: []IngestFunc{
			func(_ context.Context, runID uuid.UUID) (int, error) { return loader.RunBusinesses(runID) },
			osmImporter.Run,
			func(_ context.Context, runID uuid.UUID) (int, error) { return certImporter.Run(runID) },
		},
		Normalizer: normalize.New(db, store, cfg),
		Geocoder:   geocode.NewGeocoder(db, cfg, geocode.NewProvider(cfg.Settings)),
		Placekeyer: placekey.NewPlacekeyer(db, cfg),
		Checker:    dq.NewChecker(db, cfg),
		Exporter:   export.NewExporter(db, cfg),
	}
}

// RunEvents executes the events pipeline under a fresh ingest run id.
// Failures of any kind end as a failed build row plus a returned error;
// build metadata never sticks in the running state.
func (r *Runner) RunEvents(ctx context.Context) error {
	runID := uuid.New()
	log.Printf("[pipeline_runner] starting events pipeline run=%s", runID)

	if err := r.recordBuildStart(runID, models.BuildEvents); err != nil {
		return err
	}

	exported, processed, err := r.runEventStages(ctx, runID)
	if err != nil {
		log.Printf("[pipeline_runner] events pipeline failed run=%s: %v", runID, err)
		r.recordBuildComplete(runID, models.BuildEvents, processed, false, err.Error())
		return err
	}

	r.recordBuildComplete(runID, models.BuildEvents, exported, true, "")
	log.Printf("[pipeline_runner] events pipeline completed run=%s exported=%d", runID, exported)
	return nil
}

func (r *Runner) runEventStages(ctx context.Context, runID uuid.UUID) (exported, processed int, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("events pipeline panic: %v", p)
		}
	}()

	ingested := 0
	for _, ingest := range r.EventSources {
		n, ierr := ingest(ctx, runID)
		if ierr != nil {
			return 0, 0, ierr
		}
		ingested += n
	}
	log.Printf("[pipeline_runner] ingested %d event records run=%s", ingested, runID)

	processed, err = r.Normalizer.NormalizeEvents(runID)
	if err != nil {
		return 0, processed, err
	}

	if _, err = r.Geocoder.GeocodeEvents(ctx); err != nil {
		return 0, processed, err
	}

	res, err := r.Checker.Run()
	if err != nil {
		return 0, processed, err
	}
	if !res.Passed {
		return 0, processed, fmt.Errorf("%w: %s", ErrGateFailed, res.Summary())
	}

	for _, region := range r.regions() {
		n, eerr := r.Exporter.ExportEvents(region)
		if eerr != nil {
			return exported, processed, eerr
		}
		exported += n
	}
	return exported, processed, nil
}

// RunBusinesses executes the businesses pipeline under a fresh ingest run id.
func (r *Runner) RunBusinesses(ctx context.Context) error {
	runID := uuid.New()
	log.Printf("[pipeline_runner] starting businesses pipeline run=%s", runID)

	if err := r.recordBuildStart(runID, models.BuildBusinesses); err != nil {
		return err
	}

	exported, processed, err := r.runBusinessStages(ctx, runID)
	if err != nil {
		log.Printf("[pipeline_runner] businesses pipeline failed run=%s: %v", runID, err)
		r.recordBuildComplete(runID, models.BuildBusinesses, processed, false, err.Error())
		return err
	}

	r.recordBuildComplete(runID, models.BuildBusinesses, exported, true, "")
	log.Printf("[pipeline_runner] businesses pipeline completed run=%s exported=%d", runID, exported)
	return nil
}

func (r *Runner) runBusinessStages(ctx context.Context, runID uuid.UUID) (exported, processed int, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("businesses pipeline panic: %v", p)
		}
	}()

	ingested := 0
	for _, ingest := range r.BusinessSources {
		n, ierr := ingest(ctx, runID)
		if ierr != nil {
			return 0, 0, ierr
		}
		ingested += n
	}
	log.Printf("[pipeline_runner] ingested %d business records run=%s", ingested, runID)

	processed, err = r.Normalizer.NormalizeBusinesses(runID)
	if err != nil {
		return 0, processed, err
	}

	if _, err = r.Geocoder.GeocodeBusinesses(ctx); err != nil {
		return 0, processed, err
	}

	if _, err = r.Placekeyer.Run(ctx); err != nil {
		return 0, processed, err
	}

	res, err := r.Checker.Run()
	if err != nil {
		return 0, processed, err
	}
	if !res.Passed {
		return 0, processed, fmt.Errorf("%w: %s", ErrGateFailed, res.Summary())
	}

	for _, region := range r.regions() {
		n, eerr := r.Exporter.ExportBusinesses(region)
		if eerr != nil {
			return exported, processed, eerr
		}
		exported += n
	}
	return exported, processed, nil
}

func (r *Runner) regions() []string {
	names := r.Cfg.RegionNames()
	sort.Strings(names)
	return names
}

func (r *Runner) recordBuildStart(runID uuid.UUID, buildType string) error {
	row := models.BuildMetadata{
		IngestRunID: runID,
		BuildType:   buildType,
		StartedAt:   time.Now().UTC(),
		Status:      models.BuildRunning,
	}
	if err := r.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("recording build start: %w", err)
	}
	return nil
}

// recordBuildComplete seals the metadata row. A failure to write it is
// logged but not propagated; the pipeline error (if any) already carries
// the run's outcome.
func (r *Runner) recordBuildComplete(runID uuid.UUID, buildType string, records int, success bool, errorLog string) {
	status := models.BuildSuccess
	if !success {
		status = models.BuildFailed
	}
	updates := map[string]interface{}{
		"completed_at":      time.Now().UTC(),
		"status":            status,
		"records_processed": records,
	}
	if errorLog != "" {
		updates["error_log"] = errorLog
	}

	err := r.DB.Model(&models.BuildMetadata{}).
		Where("ingest_run_id = ? AND build_type = ?", runID, buildType).
		Updates(updates).Error
	if err != nil {
		log.Printf("[pipeline_runner] failed to record build completion run=%s: %v", runID, err)
	}
}
