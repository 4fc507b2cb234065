// Package egauge talks to an eGauge meter over its CGI endpoints.
package egauge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/epheterson/energy-dashboard/internal/meter"
)

// Client fetches cumulative register CSV and instantaneous XML from one
// eGauge device. Safe for concurrent use.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	parser   *meter.CSVParser
}

// New builds a Client for the device at baseURL. Credentials go out as
// basic auth on every request.
func New(baseURL, username, password string, parser *meter.CSVParser) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     &http.Client{Timeout: 15 * time.Second},
		parser:   parser,
	}
}

// RowsForToday returns the row count needed to cover every completed hour
// of today plus the in-progress hour. The device hands back the most
// recent N rows and N rows diff into N-1 hours, hence the extra padding.
func RowsForToday(now time.Time) int {
	return now.Hour() + 3
}

// RowsForDate returns the row count needed to reach back to target. The
// device has no random access by timestamp, so the request must span every
// hour between target's midnight and now.
func RowsForDate(now time.Time, target time.Time) int {
	daysAgo := int(midnight(now).Sub(midnight(target)).Hours() / 24)
	if daysAgo < 0 {
		daysAgo = 0
	}
	return (daysAgo+1)*24 + now.Hour() + 3
}

// RowsForDays returns the row count covering the trailing days full days.
func RowsForDays(days int) int {
	return days*24 + 1
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// FetchHourly returns the most recent n hourly cumulative rows, oldest
// first.
func (c *Client) FetchHourly(ctx context.Context, n int) ([]meter.Reading, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/cgi-bin/egauge-show?c&h&n=%d", c.baseURL, n))
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return c.parser.Parse(body)
}

// FetchLatest returns the newest cumulative snapshot at minute resolution,
// for pricing the in-progress hour.
func (c *Client) FetchLatest(ctx context.Context) (*meter.Reading, error) {
	body, err := c.get(ctx, c.baseURL+"/cgi-bin/egauge-show?c&m&n=2")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	readings, err := c.parser.Parse(body)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("egauge: empty snapshot response")
	}
	latest := readings[len(readings)-1]
	return &latest, nil
}

// FetchInstant returns live per-register power draw in watts.
func (c *Client) FetchInstant(ctx context.Context) (meter.InstantSnapshot, error) {
	body, err := c.get(ctx, c.baseURL+"/cgi-bin/egauge?notemp&tot&inst")
	if err != nil {
		return meter.InstantSnapshot{}, err
	}
	defer body.Close()
	return meter.ParseInstantXML(body)
}

func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("egauge: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("egauge: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp.Body, nil
}
