// Package calendar ingests events from calendar sources: raw ICS feeds
// over HTTP, or a calendar provider API returning typed events. Both
// strategies produce the same raw-record shape before staging.
package calendar

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/BayanLab/Backbone/internal/config"
	"github.com/BayanLab/Backbone/internal/models"
	"github.com/BayanLab/Backbone/internal/staging"
)

// FetchStrategy turns one configured calendar source into raw event records.
type FetchStrategy interface {
	Name() string
	Fetch(ctx context.Context, src config.CalendarSource) ([]models.RawEvent, error)
}

// Poller ingests all enabled calendar sources for a run. A failing source
// contributes zero records and never aborts the rest of the run.
type Poller struct {
	store *staging.Store
	cfg   *config.Config
	feed  FetchStrategy
	api   FetchStrategy
}

func NewPoller(store *staging.Store, cfg *config.Config) *Poller {
	return &Poller{
		store: store,
		cfg:   cfg,
		feed:  newFeedStrategy(cfg.Settings.DefaultRegion),
		api:   newProviderStrategy(cfg.Settings.CalendarAPIKey, cfg.Settings.DefaultRegion),
	}
}

// Run ingests every enabled calendar source into the run's staging
// partition and returns the number of records staged. The only error it
// returns is a staging-store failure, which is pipeline-fatal.
func (p *Poller) Run(ctx context.Context, runID uuid.UUID) (int, error) {
	log.Printf("[ics_poller] starting run=%s", runID)

	total := 0
	for _, src := range p.cfg.Sources.ICSSources {
		if !src.IsEnabled() {
			continue
		}
		n, err := p.ingestSource(ctx, runID, p.feed, src)
		if err != nil {
			return total, err
		}
		total += n
	}
	for _, src := range p.cfg.Sources.CalendarAPISources {
		if !src.IsEnabled() {
			continue
		}
		n, err := p.ingestSource(ctx, runID, p.api, src)
		if err != nil {
			return total, err
		}
		total += n
	}

	log.Printf("[ics_poller] completed run=%s count_out=%d", runID, total)
	return total, nil
}

func (p *Poller) ingestSource(ctx context.Context, runID uuid.UUID, strategy FetchStrategy, src config.CalendarSource) (int, error) {
	events, err := strategy.Fetch(ctx, src)
	if err != nil {
		log.Printf("[ics_poller] source %s (%s) failed: %v", src.ID, strategy.Name(), err)
		return 0, nil
	}

	n, err := p.store.StageEvents(runID, events)
	if err != nil {
		return 0, err
	}
	log.Printf("[ics_poller] ingested %d events from %s run=%s", n, src.ID, runID)
	return n, nil
}
