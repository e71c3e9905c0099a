package ovoenergy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
)

var (
	// ErrAuthentication is returned when the portal rejects the login.
	ErrAuthentication = errors.New("ovoenergy: authentication failed")

	// ErrConnection is returned when the portal cannot be reached.
	ErrConnection = errors.New("ovoenergy: connection failed")

	// ErrResponse is returned for unexpected HTTP statuses or bodies.
	ErrResponse = errors.New("ovoenergy: unexpected response")

	// ErrNoAccount is returned when the login has no energy account.
	ErrNoAccount = errors.New("ovoenergy: no account")
)

const maxResponseSize = 2 << 20

// Date formats of the usage endpoints.
const (
	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"
)

// Client holds a logged-in portal session.
type Client struct {
	authURL  string
	usageURL string
	username string
	password string

	http *http.Client

	mu       sync.Mutex
	loggedIn bool
}

// NewClient creates a client with its own cookie jar. The transport of
// httpClient is reused.
func NewClient(httpClient *http.Client, authURL, usageURL, username, password string) *Client {
	jar, _ := cookiejar.New(nil)
	c := &http.Client{Jar: jar}
	if httpClient != nil {
		c.Transport = httpClient.Transport
		c.Timeout = httpClient.Timeout
	}
	return &Client{
		authURL:  strings.TrimRight(authURL, "/"),
		usageURL: strings.TrimRight(usageURL, "/"),
		username: username,
		password: password,
		http:     c,
	}
}

// Login starts a session.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	body := map[string]any{
		"username":   c.username,
		"password":   c.password,
		"rememberMe": true,
	}
	var resp struct {
		Code string `json:"code"`
	}
	err := c.send(ctx, http.MethodPost, c.authURL+"/api/v2/auth/login", body, &resp)
	if err != nil {
		return err
	}
	if resp.Code != "" && !strings.EqualFold(resp.Code, "OK") {
		return fmt.Errorf("%w: login code %q", ErrAuthentication, resp.Code)
	}
	c.loggedIn = true
	return nil
}

// AccountID returns the first energy account of the login.
func (c *Client) AccountID(ctx context.Context) (string, error) {
	var ids accountIDs
	if err := c.get(ctx, "/api/customer-and-account-ids", &ids); err != nil {
		return "", err
	}
	if len(ids.AccountIDs) == 0 || ids.AccountIDs[0] == "" {
		return "", ErrNoAccount
	}
	return ids.AccountIDs[0].String(), nil
}

// DailyUsage returns the daily readings of the month containing month.
func (c *Client) DailyUsage(ctx context.Context, account string, month time.Time) (*Usage, error) {
	var u Usage
	path := "/api/energy-usage/daily/" + url.PathEscape(account) + "?date=" + month.Format(monthLayout)
	if err := c.get(ctx, path, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// HalfHourlyUsage returns the half-hourly readings of day.
func (c *Client) HalfHourlyUsage(ctx context.Context, account string, day time.Time) (*Usage, error) {
	var u Usage
	path := "/api/energy-usage/half-hourly/" + url.PathEscape(account) + "?date=" + day.Format(dayLayout)
	if err := c.get(ctx, path, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// get reads a usage path, logging in first and once more if the session
// has expired.
func (c *Client) get(ctx context.Context, path string, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loggedIn {
		if err := c.loginLocked(ctx); err != nil {
			return err
		}
	}

	err := c.send(ctx, http.MethodGet, c.usageURL+path, nil, out)
	if !errors.Is(err, ErrAuthentication) {
		return err
	}

	c.loggedIn = false
	if err := c.loginLocked(ctx); err != nil {
		return err
	}
	return c.send(ctx, http.MethodGet, c.usageURL+path, nil, out)
}

func (c *Client) send(ctx context.Context, method, rawURL string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrResponse, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrConnection, method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthentication, resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %s %s: %s", ErrResponse, method, req.URL.Path, resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s: %w", ErrResponse, req.URL.Path, err)
	}
	return nil
}
