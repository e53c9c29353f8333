package liveboard2sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

const DefaultBaseURL = "https://api.irail.be"

// Client fetches liveboards from the iRail API. A network failure or bad
// response surfaces as a *TransportError; there is no retry here.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type liveboardResponse struct {
	Departures struct {
		Departure []RawDeparture `json:"departure"`
	} `json:"departures"`
}

// Liveboard fetches the current departure board for one station.
func (c *Client) Liveboard(ctx context.Context, station string) ([]RawDeparture, error) {
	params := url.Values{}
	params.Set("station", station)
	params.Set("format", "json")
	params.Set("lang", "en")
	reqURL := c.BaseURL + "/liveboard/?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{URL: reqURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var body liveboardResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &TransportError{URL: reqURL, Err: errors.Wrap(err, "decode liveboard response")}
	}

	return body.Departures.Departure, nil
}
