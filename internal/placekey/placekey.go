// Package placekey tags canonical businesses with Placekeys so downstream
// consumers can join them against other location datasets. The stage is
// optional: without an API key it logs and contributes nothing.
package placekey

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/BayanLab/Backbone/internal/config"
	"github.com/BayanLab/Backbone/internal/models"
)

const apiURL = "https://api.placekey.io/v1/placekey"

// Client wraps the Placekey API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: apiURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithBaseURL overrides the API endpoint (tests).
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

type placekeyRequest struct {
	Query placekeyQuery `json:"query"`
}

type placekeyQuery struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	StreetAddress string  `json:"street_address,omitempty"`
	City          string  `json:"city,omitempty"`
	Region        string  `json:"region,omitempty"`
	PostalCode    string  `json:"postal_code,omitempty"`
}

type placekeyResponse struct {
	Placekey string `json:"placekey"`
}

// Lookup resolves one coordinate/address query to a Placekey.
func (c *Client) Lookup(ctx context.Context, q placekeyQuery) (string, error) {
	body, err := json.Marshal(placekeyRequest{Query: q})
	if err != nil {
		return "", fmt.Errorf("marshaling placekey request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("placekey request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("placekey API returned status %d", resp.StatusCode)
	}

	var out placekeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding placekey response: %w", err)
	}
	if out.Placekey == "" {
		return "", fmt.Errorf("placekey response had no key")
	}
	return out.Placekey, nil
}

// Placekeyer is the pipeline stage over canonical businesses.
type Placekeyer struct {
	db        *gorm.DB
	client    *Client
	batchSize int
}

func NewPlacekeyer(db *gorm.DB, cfg *config.Config) *Placekeyer {
	p := &Placekeyer{db: db, batchSize: 100}
	if cfg.Settings.PlacekeyAPIKey != "" {
		p.client = NewClient(cfg.Settings.PlacekeyAPIKey)
	}
	return p
}

// WithClient overrides the API client (tests).
func (p *Placekeyer) WithClient(c *Client) *Placekeyer {
	p.client = c
	return p
}

// Run tags geocoded businesses that lack a placekey. Per-row lookup
// failures leave the row for a later pass.
func (p *Placekeyer) Run(ctx context.Context) (int, error) {
	if p.client == nil {
		log.Printf("[placekeyer] Placekey API key not configured - skipping")
		return 0, nil
	}

	var rows []models.Business
	err := p.db.
		Where("placekey IS NULL AND latitude IS NOT NULL AND longitude IS NOT NULL").
		Limit(p.batchSize).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}

	count := 0
	for _, row := range rows {
		q := placekeyQuery{
			Latitude:  *row.Latitude,
			Longitude: *row.Longitude,
			City:      row.AddressCity,
			Region:    row.AddressState,
		}
		if row.AddressStreet != nil {
			q.StreetAddress = *row.AddressStreet
		}
		if row.AddressZip != nil {
			q.PostalCode = *row.AddressZip
		}

		key, err := p.client.Lookup(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return count, ctx.Err()
			}
			log.Printf("[placekeyer] lookup failed for %s: %v", row.BusinessID, err)
			continue
		}

		err = p.db.Model(&models.Business{}).
			Where("business_id = ?", row.BusinessID).
			Update("placekey", key).Error
		if err != nil {
			return count, err
		}
		count++
	}

	log.Printf("[placekeyer] tagged %d businesses", count)
	return count, nil
}
