// Package ha fetches solar and battery telemetry from Home Assistant.
package ha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/epheterson/energy-dashboard/internal/solar"
)

// Client reads cumulative energy counters and live states over the Home
// Assistant REST API with a long-lived access token.
type Client struct {
	baseURL  string
	token    string
	entities map[solar.Quantity]string
	live     map[string]string
	loc      *time.Location
	http     *http.Client
}

// New builds a Client. entities maps each telemetry quantity to the entity
// ID of its cumulative kWh sensor; live maps power-flow keys (solar_power,
// grid_power, battery_power, soc) to their instantaneous sensors; loc nil
// means the local zone.
func New(baseURL, token string, entities map[solar.Quantity]string, live map[string]string, loc *time.Location) *Client {
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		entities: entities,
		live:     live,
		loc:      loc,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Configured reports whether the client has everything it needs: a URL, a
// token and an entity for every telemetry quantity.
func (c *Client) Configured() bool {
	if c.baseURL == "" || c.token == "" {
		return false
	}
	for _, q := range solar.Quantities {
		if c.entities[q] == "" {
			return false
		}
	}
	return true
}

type stateEntry struct {
	EntityID    string `json:"entity_id"`
	State       string `json:"state"`
	LastChanged string `json:"last_changed"`
	LastUpdated string `json:"last_updated"`
}

// FetchHistory returns the cumulative counter samples for every configured
// quantity between start and end. Non-numeric states ("unavailable",
// "unknown") are dropped; quantities whose fetch fails are simply absent.
func (c *Client) FetchHistory(ctx context.Context, start, end time.Time) (map[solar.Quantity][]solar.Sample, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("ha: client not configured")
	}

	out := make(map[solar.Quantity][]solar.Sample, len(c.entities))
	for q, entityID := range c.entities {
		samples, err := c.fetchEntityHistory(ctx, entityID, start, end)
		if err != nil {
			return nil, fmt.Errorf("ha: history for %s: %w", entityID, err)
		}
		if len(samples) > 0 {
			out[q] = samples
		}
	}
	return out, nil
}

func (c *Client) fetchEntityHistory(ctx context.Context, entityID string, start, end time.Time) ([]solar.Sample, error) {
	u := fmt.Sprintf("%s/api/history/period/%s?end_time=%s&filter_entity_id=%s&significant_changes_only=0&no_attributes",
		c.baseURL,
		start.Format(time.RFC3339),
		url.QueryEscape(end.Format(time.RFC3339)),
		url.QueryEscape(entityID),
	)

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	// The history API wraps each entity's states in an outer array.
	var lists [][]stateEntry
	if err := json.Unmarshal(body, &lists); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	if len(lists) == 0 {
		return nil, nil
	}

	samples := make([]solar.Sample, 0, len(lists[0]))
	for _, entry := range lists[0] {
		value, err := strconv.ParseFloat(entry.State, 64)
		if err != nil {
			continue
		}
		ts := entry.LastChanged
		if ts == "" {
			ts = entry.LastUpdated
		}
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			continue
		}
		samples = append(samples, solar.Sample{Timestamp: t.In(c.loc), Value: value})
	}
	return samples, nil
}

// FetchLive returns the current numeric state of every live power entity,
// keyed by its power-flow name. Entities with non-numeric states report 0.
func (c *Client) FetchLive(ctx context.Context) (map[string]float64, error) {
	if c.baseURL == "" || c.token == "" || len(c.live) == 0 {
		return nil, fmt.Errorf("ha: no live entities configured")
	}
	body, err := c.get(ctx, c.baseURL+"/api/states")
	if err != nil {
		return nil, fmt.Errorf("ha: states: %w", err)
	}

	var states []stateEntry
	if err := json.Unmarshal(body, &states); err != nil {
		return nil, fmt.Errorf("ha: decoding states: %w", err)
	}

	byEntity := make(map[string]string, len(c.live))
	for key, id := range c.live {
		byEntity[id] = key
	}

	out := make(map[string]float64)
	for _, s := range states {
		key, ok := byEntity[s.EntityID]
		if !ok {
			continue
		}
		value, err := strconv.ParseFloat(s.State, 64)
		if err != nil {
			value = 0
		}
		out[key] = value
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
