package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/BayanLab/Backbone/internal/config"
	"github.com/BayanLab/Backbone/internal/models"
)

// providerStrategy fetches typed events from a calendar provider API
// instead of scraping a raw text feed. Provider events carry a stable
// event id, which becomes the staging source_ref.
type providerStrategy struct {
	apiKey       string
	httpClient   *http.Client
	defaultState string
}

func newProviderStrategy(apiKey, defaultState string) *providerStrategy {
	return &providerStrategy{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		defaultState: defaultState,
	}
}

func (p *providerStrategy) Name() string { return "calendar-api" }

type providerEventList struct {
	Events []providerEvent `json:"events"`
}

type providerEvent struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Start       string `json:"start"` // RFC 3339
	End         string `json:"end"`   // RFC 3339
	AllDay      bool   `json:"all_day"`
	Location    string `json:"location"`
	URL         string `json:"url"`
}

func (p *providerStrategy) Fetch(ctx context.Context, src config.CalendarSource) ([]models.RawEvent, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("calendar source %s: CALENDAR_API_KEY not set", src.ID)
	}

	fullURL := fmt.Sprintf("%s/calendars/%s/events?key=%s",
		src.Endpoint, url.PathEscape(src.CalendarID), url.QueryEscape(p.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar API returned status %d", resp.StatusCode)
	}

	var list providerEventList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding calendar API response: %w", err)
	}

	events := make([]models.RawEvent, 0, len(list.Events))
	for _, ev := range list.Events {
		events = append(events, models.RawEvent{
			Title:         ev.Title,
			Description:   ev.Description,
			StartTime:     ev.Start,
			EndTime:       ev.End,
			AllDay:        ev.AllDay,
			VenueName:     src.VenueName,
			AddressStreet: ev.Location,
			AddressCity:   src.City,
			AddressState:  p.defaultState,
			URL:           ev.URL,
			Source:        models.SourceICS,
			SourceRef:     ev.ID,
			Region:        src.Region,
		})
	}
	return events, nil
}
