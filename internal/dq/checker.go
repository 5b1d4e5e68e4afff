// Package dq runs the data-quality battery over the full canonical store
// and decides the publish gate. The decision is a pure function of store
// content and the configured fail_on_error / fail_on_warning flags.
package dq

import (
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/BayanLab/Backbone/internal/config"
	"github.com/BayanLab/Backbone/internal/models"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Violation is one rule failure on one entity.
type Violation struct {
	EntityID string
	Rule     string
	Message  string
	Severity Severity
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s: %s", v.EntityID, v.Rule, v.Message)
}

// Result is the outcome of one full check run.
type Result struct {
	Errors   []Violation
	Warnings []Violation
	Passed   bool
}

// Summary renders a one-line error log for build metadata.
func (r *Result) Summary() string {
	return fmt.Sprintf("%d errors, %d warnings", len(r.Errors), len(r.Warnings))
}

// Basic NANP shape; anything weirder is only a warning.
var phoneRe = regexp.MustCompile(`^\+?1?[-.]?\(?([0-9]{3})\)?[-.]?([0-9]{3})[-.]?([0-9]{4})$`)

// Checker runs the rule battery. It checks the whole canonical store, not
// just the current run, since cross-run consistency matters too.
type Checker struct {
	db  *gorm.DB
	cfg *config.Config
	now func() time.Time
}

func NewChecker(db *gorm.DB, cfg *config.Config) *Checker {
	return &Checker{db: db, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// Run executes every rule and returns the aggregated result. Passed is
// false when fail_on_error (default true) and any error exists, or
// fail_on_warning and any warning exists.
func (c *Checker) Run() (*Result, error) {
	log.Printf("[dq_checks] starting")

	res := &Result{}
	if err := c.checkEvents(res); err != nil {
		return nil, err
	}
	if err := c.checkBusinesses(res); err != nil {
		return nil, err
	}
	if err := c.checkDuplicates(res); err != nil {
		return nil, err
	}

	for _, v := range res.Errors {
		log.Printf("[dq_checks] error: %s", v)
	}
	for _, v := range res.Warnings {
		log.Printf("[dq_checks] warning: %s", v)
	}

	failOnError := c.cfg.DQ.Pipeline.ShouldFailOnError()
	failOnWarning := c.cfg.DQ.Pipeline.FailOnWarning
	res.Passed = !(failOnError && len(res.Errors) > 0 || failOnWarning && len(res.Warnings) > 0)

	log.Printf("[dq_checks] completed: %s passed=%t", res.Summary(), res.Passed)
	return res, nil
}

func (c *Checker) checkEvents(res *Result) error {
	var events []models.Event
	if err := c.db.Find(&events).Error; err != nil {
		return fmt.Errorf("loading events for DQ: %w", err)
	}

	maxAge := time.Duration(c.cfg.DQ.MaxEventAgeDays()) * 24 * time.Hour

	for _, e := range events {
		id := e.EventID.String()

		if e.Title == "" || e.AddressCity == "" || e.AddressState == "" {
			res.add(id, "required_fields", "missing required fields", SeverityError)
		}
		if !e.EndTime.After(e.StartTime) {
			res.add(id, "temporal", "start_time >= end_time", SeverityError)
		}
		if e.StartTime.Before(c.now().Add(-maxAge)) {
			res.add(id, "stale_event", fmt.Sprintf("event is more than %d days old", c.cfg.DQ.MaxEventAgeDays()), SeverityWarning)
		}
		c.checkRegion(res, id, e.Region, e.AddressState, e.Latitude, e.Longitude)
	}

	return nil
}

func (c *Checker) checkBusinesses(res *Result) error {
	var businesses []models.Business
	if err := c.db.Find(&businesses).Error; err != nil {
		return fmt.Errorf("loading businesses for DQ: %w", err)
	}

	for _, b := range businesses {
		id := b.BusinessID.String()

		if b.Name == "" || b.AddressCity == "" || b.AddressState == "" {
			res.add(id, "required_fields", "missing required fields", SeverityError)
		}
		if !models.ValidCategory(b.Category) {
			res.add(id, "category", fmt.Sprintf("Invalid category %q", b.Category), SeverityError)
		}
		c.checkRegion(res, id, b.Region, b.AddressState, b.Latitude, b.Longitude)

		if b.Phone != nil && !phoneRe.MatchString(strings.ReplaceAll(*b.Phone, " ", "")) {
			res.add(id, "phone_format", "invalid phone format", SeverityWarning)
		}
	}

	return nil
}

// checkRegion applies the geographic containment and region/state
// consistency rules shared by both families. An out-of-box coordinate pair
// yields exactly one violation per entity.
func (c *Checker) checkRegion(res *Result, id, region, state string, lat, lon *float64) {
	r, known := c.cfg.Regions.Regions[region]
	if !known {
		return
	}

	if single, ok := r.SingleState(); ok && state != single {
		res.add(id, "region_state", fmt.Sprintf("region %s does not match state %s", region, state), SeverityError)
	}
	if lat != nil && lon != nil && !r.BBox.Contains(*lat, *lon) {
		res.add(id, "bbox", "coordinates outside region bounding box", SeverityError)
	}
}

type dupeRow struct {
	ID string
	N  int
}

func (c *Checker) checkDuplicates(res *Result) error {
	var dupes []dupeRow
	err := c.db.Model(&models.Event{}).
		Select("event_id AS id, COUNT(*) AS n").
		Group("event_id").
		Having("COUNT(*) > 1").
		Scan(&dupes).Error
	if err != nil {
		return fmt.Errorf("checking duplicate event ids: %w", err)
	}
	for _, d := range dupes {
		res.add(d.ID, "duplicate_id", fmt.Sprintf("duplicate event_id (%d occurrences)", d.N), SeverityError)
	}

	dupes = nil
	err = c.db.Model(&models.Business{}).
		Select("business_id AS id, COUNT(*) AS n").
		Group("business_id").
		Having("COUNT(*) > 1").
		Scan(&dupes).Error
	if err != nil {
		return fmt.Errorf("checking duplicate business ids: %w", err)
	}
	for _, d := range dupes {
		res.add(d.ID, "duplicate_id", fmt.Sprintf("duplicate business_id (%d occurrences)", d.N), SeverityError)
	}

	return nil
}

func (r *Result) add(id, rule, msg string, sev Severity) {
	v := Violation{EntityID: id, Rule: rule, Message: msg, Severity: sev}
	if sev == SeverityError {
		r.Errors = append(r.Errors, v)
	} else {
		r.Warnings = append(r.Warnings, v)
	}
}
