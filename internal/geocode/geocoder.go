package geocode

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/BayanLab/Backbone/internal/config"
	"github.com/BayanLab/Backbone/internal/models"
)

// Geocoder is the enrichment stage: it finds canonical rows missing
// coordinates and fills them, a capped batch per pass. Lookups are spaced
// by a rate limiter to respect the provider's usage policy; a failed or
// unmatched lookup leaves the row for a later pass.
type Geocoder struct {
	db        *gorm.DB
	provider  Provider
	limiter   *rate.Limiter
	batchSize int
}

func NewGeocoder(db *gorm.DB, cfg *config.Config, provider Provider) *Geocoder {
	limit := rate.Inf
	if cfg.Settings.GeocoderRateWait > 0 {
		limit = rate.Every(cfg.Settings.GeocoderRateWait)
	}
	return &Geocoder{
		db:        db,
		provider:  provider,
		limiter:   rate.NewLimiter(limit, 1),
		batchSize: cfg.Settings.GeocoderBatchSize,
	}
}

// Run geocodes both families and returns the per-family update counts.
func (g *Geocoder) Run(ctx context.Context) (eventsUpdated, businessesUpdated int, err error) {
	eventsUpdated, err = g.GeocodeEvents(ctx)
	if err != nil {
		return eventsUpdated, 0, err
	}
	businessesUpdated, err = g.GeocodeBusinesses(ctx)
	return eventsUpdated, businessesUpdated, err
}

// GeocodeEvents fills coordinates on events missing them.
func (g *Geocoder) GeocodeEvents(ctx context.Context) (int, error) {
	log.Printf("[geocoder] geocoding events provider=%s", g.provider.Name())

	var rows []models.Event
	err := g.db.
		Where("latitude IS NULL OR longitude IS NULL").
		Limit(g.batchSize).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}

	count := 0
	for _, row := range rows {
		pt, err := g.lookup(ctx, composeAddress(row.AddressStreet, row.AddressCity, row.AddressState, row.AddressZip))
		if err != nil {
			if ctx.Err() != nil {
				return count, ctx.Err()
			}
			continue
		}
		err = g.db.Model(&models.Event{}).
			Where("event_id = ?", row.EventID).
			Updates(map[string]interface{}{
				"latitude":   pt.Lat,
				"longitude":  pt.Lon,
				"updated_at": time.Now().UTC(),
			}).Error
		if err != nil {
			return count, err
		}
		count++
	}

	log.Printf("[geocoder] geocoded %d events", count)
	return count, nil
}

// GeocodeBusinesses fills coordinates on businesses missing them.
func (g *Geocoder) GeocodeBusinesses(ctx context.Context) (int, error) {
	log.Printf("[geocoder] geocoding businesses provider=%s", g.provider.Name())

	var rows []models.Business
	err := g.db.
		Where("latitude IS NULL OR longitude IS NULL").
		Limit(g.batchSize).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}

	count := 0
	for _, row := range rows {
		pt, err := g.lookup(ctx, composeAddress(row.AddressStreet, row.AddressCity, row.AddressState, row.AddressZip))
		if err != nil {
			if ctx.Err() != nil {
				return count, ctx.Err()
			}
			continue
		}
		err = g.db.Model(&models.Business{}).
			Where("business_id = ?", row.BusinessID).
			Updates(map[string]interface{}{
				"latitude":   pt.Lat,
				"longitude":  pt.Lon,
				"updated_at": time.Now().UTC(),
			}).Error
		if err != nil {
			return count, err
		}
		count++
	}

	log.Printf("[geocoder] geocoded %d businesses", count)
	return count, nil
}

func (g *Geocoder) lookup(ctx context.Context, address string) (*Point, error) {
	if address == "" {
		return nil, ErrNoResult
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	pt, err := g.provider.Geocode(ctx, address)
	if err != nil {
		if !errors.Is(err, ErrNoResult) {
			log.Printf("[geocoder] lookup failed for %q: %v", address, err)
		}
		return nil, err
	}
	return pt, nil
}

func composeAddress(street *string, city, state string, zip *string) string {
	var parts []string
	if street != nil && *street != "" {
		parts = append(parts, *street)
	}
	if city != "" {
		parts = append(parts, city)
	}
	if state != "" {
		parts = append(parts, state)
	}
	if zip != nil && *zip != "" {
		parts = append(parts, *zip)
	}
	return strings.Join(parts, ", ")
}
