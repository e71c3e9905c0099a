package lyric

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/nerrad567/gray-logic-integrations/internal/entity"
)

var (
	// ErrAuthentication is returned when the token is rejected or cannot
	// be refreshed.
	ErrAuthentication = errors.New("lyric: authentication failed")

	// ErrConnection is returned when the API cannot be reached.
	ErrConnection = errors.New("lyric: connection failed")

	// ErrResponse is returned for unexpected HTTP statuses or bodies.
	ErrResponse = errors.New("lyric: unexpected response")

	// ErrInvalidRequest is returned for service parameters the thermostat
	// cannot accept.
	ErrInvalidRequest = fmt.Errorf("lyric: invalid request: %w", entity.ErrInvalidParams)

	// ErrNotFound is returned when a thermostat is no longer reported.
	ErrNotFound = errors.New("lyric: thermostat not found")
)

const maxResponseSize = 2 << 20

// Client talks to the Honeywell API. Its HTTP client must add the bearer
// token; oauth2.NewClient does.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// NewClient creates a client. apiKey is the OAuth client id, which the API
// also wants as a query parameter.
func NewClient(httpClient *http.Client, baseURL, apiKey string) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// Locations returns every location with its devices.
func (c *Client) Locations(ctx context.Context) ([]Location, error) {
	var locations []Location
	if err := c.do(ctx, http.MethodGet, "/v2/locations", nil, nil, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

// Snapshot polls all locations.
func (c *Client) Snapshot(ctx context.Context) (*Snapshot, error) {
	locations, err := c.Locations(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Locations: locations}, nil
}

// UpdateThermostat writes new settings to a thermostat.
func (c *Client) UpdateThermostat(ctx context.Context, locationID int, deviceID string, v ChangeableValues) error {
	query := url.Values{"locationId": {strconv.Itoa(locationID)}}
	return c.do(ctx, http.MethodPost, "/v2/devices/thermostats/"+url.PathEscape(deviceID), query, v, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("apikey", c.apiKey)

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s body: %w", path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), reader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrResponse, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var retrieve *oauth2.RetrieveError
		if errors.As(err, &retrieve) {
			return fmt.Errorf("%w: refreshing token: %w", ErrAuthentication, err)
		}
		return fmt.Errorf("%w: %s %s: %w", ErrConnection, method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthentication, resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %s %s: %s", ErrResponse, method, path, resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s: %w", ErrResponse, path, err)
	}
	return nil
}
