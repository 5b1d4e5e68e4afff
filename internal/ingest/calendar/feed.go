package calendar

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/BayanLab/Backbone/internal/config"
	"github.com/BayanLab/Backbone/internal/models"
)

// feedStrategy fetches a raw ICS document over HTTP and walks its VEVENTs.
type feedStrategy struct {
	httpClient   *http.Client
	defaultState string
}

func newFeedStrategy(defaultState string) *feedStrategy {
	return &feedStrategy{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		defaultState: defaultState,
	}
}

func (f *feedStrategy) Name() string { return "ics-feed" }

func (f *feedStrategy) Fetch(ctx context.Context, src config.CalendarSource) ([]models.RawEvent, error) {
	body, err := f.fetchICS(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	components, err := parseCalendar(body)
	if err != nil {
		return nil, fmt.Errorf("parsing ICS calendar: %w", err)
	}

	var events []models.RawEvent
	for _, comp := range components {
		ev, err := extractEvent(comp, src, f.defaultState)
		if err != nil {
			// One malformed component never sinks the feed.
			log.Printf("[ics_poller] skipping event in %s: %v", src.ID, err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (f *feedStrategy) fetchICS(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching ICS from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching ICS from %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading ICS body: %w", err)
	}
	return string(body), nil
}

// extractEvent maps one VEVENT onto the raw-record shape. Venue and city
// come from the source config since feeds rarely carry structured addresses.
func extractEvent(comp icsEvent, src config.CalendarSource, defaultState string) (models.RawEvent, error) {
	dtstart, ok := comp.props["DTSTART"]
	if !ok {
		return models.RawEvent{}, fmt.Errorf("event %q has no DTSTART", comp.get("UID"))
	}

	start, allDay, err := parseICSTime(dtstart)
	if err != nil {
		return models.RawEvent{}, err
	}

	end := start
	if dtend, ok := comp.props["DTEND"]; ok {
		end, _, err = parseICSTime(dtend)
		if err != nil {
			return models.RawEvent{}, err
		}
	}

	return models.RawEvent{
		Title:         comp.get("SUMMARY"),
		Description:   comp.get("DESCRIPTION"),
		StartTime:     start.Format(time.RFC3339),
		EndTime:       end.Format(time.RFC3339),
		AllDay:        allDay,
		VenueName:     src.VenueName,
		AddressStreet: comp.get("LOCATION"),
		AddressCity:   src.City,
		AddressState:  defaultState,
		URL:           comp.get("URL"),
		Source:        models.SourceICS,
		SourceRef:     comp.get("UID"),
		Region:        src.Region,
	}, nil
}
