package systembridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-integrations/internal/entity"
)

var (
	// ErrAuthentication is returned when the bridge rejects the API key.
	ErrAuthentication = errors.New("systembridge: authentication failed")

	// ErrConnection is returned when the bridge cannot be reached.
	ErrConnection = errors.New("systembridge: connection failed")

	// ErrResponse is returned for unexpected HTTP statuses or bodies.
	ErrResponse = errors.New("systembridge: unexpected response")

	// ErrInvalidHost is returned for host or port values that cannot form a URL.
	ErrInvalidHost = errors.New("systembridge: invalid host")

	// ErrInvalidRequest is returned for action arguments the bridge would reject.
	ErrInvalidRequest = fmt.Errorf("systembridge: invalid request: %w", entity.ErrInvalidParams)
)

// apiKeyHeader carries the bridge API key.
const apiKeyHeader = "api-key"

// maxResponseSize bounds a decoded response (4MB; /processes can be large).
const maxResponseSize = 4 << 20

// Client talks to one System Bridge.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// NewClient creates a client for http://host:port.
func NewClient(httpClient *http.Client, host, port, apiKey string) (*Client, error) {
	if err := ValidateHost(host, port); err != nil {
		return nil, err
	}
	return &Client{
		http:    httpClient,
		baseURL: "http://" + net.JoinHostPort(host, port),
		apiKey:  apiKey,
	}, nil
}

// ValidateHost checks that host and port form a usable address.
func ValidateHost(host, port string) error {
	if host == "" || strings.ContainsAny(host, "/\\@?# \t") || strings.Contains(host, "://") {
		return fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("%w: port %q", ErrInvalidHost, port)
	}
	return nil
}

// BaseURL returns the bridge URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s body: %w", path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidHost, err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
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

func get[T any](ctx context.Context, c *Client, path string) (*T, error) {
	var v T
	if err := c.do(ctx, http.MethodGet, path, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// GetOS fetches /os.
func (c *Client) GetOS(ctx context.Context) (*OS, error) { return get[OS](ctx, c, "/os") }

// GetNetwork fetches /network.
func (c *Client) GetNetwork(ctx context.Context) (*Network, error) {
	return get[Network](ctx, c, "/network")
}

// GetCPU fetches /cpu.
func (c *Client) GetCPU(ctx context.Context) (*CPU, error) { return get[CPU](ctx, c, "/cpu") }

// GetBattery fetches /battery.
func (c *Client) GetBattery(ctx context.Context) (*Battery, error) {
	return get[Battery](ctx, c, "/battery")
}

// GetFilesystem fetches /filesystem.
func (c *Client) GetFilesystem(ctx context.Context) (*Filesystem, error) {
	return get[Filesystem](ctx, c, "/filesystem")
}

// GetProcesses fetches /processes.
func (c *Client) GetProcesses(ctx context.Context) (*Processes, error) {
	return get[Processes](ctx, c, "/processes")
}

// GetSystem fetches /system.
func (c *Client) GetSystem(ctx context.Context) (*System, error) {
	return get[System](ctx, c, "/system")
}

// Snapshot fetches every endpoint concurrently. Any failure fails the
// whole snapshot.
func (c *Client) Snapshot(ctx context.Context) (*Snapshot, error) {
	var s Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) { s.Battery, err = c.GetBattery(gctx); return err })
	g.Go(func() (err error) { s.CPU, err = c.GetCPU(gctx); return err })
	g.Go(func() (err error) { s.Filesystem, err = c.GetFilesystem(gctx); return err })
	g.Go(func() (err error) { s.Network, err = c.GetNetwork(gctx); return err })
	g.Go(func() (err error) { s.OS, err = c.GetOS(gctx); return err })
	g.Go(func() (err error) { s.Processes, err = c.GetProcesses(gctx); return err })
	g.Go(func() (err error) { s.System, err = c.GetSystem(gctx); return err })

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Open asks the bridge to open a path or URL on its desktop.
func (c *Client) Open(ctx context.Context, r OpenRequest) error {
	if (r.Path == "") == (r.URL == "") {
		return fmt.Errorf("%w: exactly one of path or url is required", ErrInvalidRequest)
	}
	return c.do(ctx, http.MethodPost, "/open", r, nil)
}

// Command runs a command on the bridge host.
func (c *Client) Command(ctx context.Context, r CommandRequest) error {
	if r.Command == "" {
		return fmt.Errorf("%w: command is required", ErrInvalidRequest)
	}
	if r.Arguments == nil {
		r.Arguments = []string{}
	}
	return c.do(ctx, http.MethodPost, "/command", r, nil)
}
