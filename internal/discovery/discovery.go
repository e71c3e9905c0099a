package discovery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/nerrad567/gray-logic-integrations/internal/flow"
)

// ErrNoWatches is returned by Run when nothing is watched.
var ErrNoWatches = errors.New("discovery: no service types watched")

const (
	defaultInterval = 5 * time.Minute
	defaultTimeout  = 10 * time.Second
	browseDomain    = "local."
)

// Logger defines the logging interface used by discovery.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Browser browses one mDNS service type. *zeroconf.Resolver implements it.
type Browser interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// FlowStarter starts config flows. *flow.Manager implements it.
type FlowStarter interface {
	Start(ctx context.Context, domain string, source flow.Source, data map[string]string) (flow.Result, error)
}

// Watch ties a service type to the integration that handles it.
type Watch struct {
	Domain  string
	Service string // e.g. "_system-bridge._udp"
}

// Config controls scanning.
type Config struct {
	// Interval between scans.
	Interval time.Duration

	// Timeout bounds one browse of one service type.
	Timeout time.Duration
}

// Discovery scans for watched services.
type Discovery struct {
	browser Browser
	starter FlowStarter
	watches []Watch
	cfg     Config
	logger  Logger

	// scanMu keeps scans from overlapping.
	scanMu sync.Mutex
}

// New creates a Discovery. A zero Config uses a 5 minute interval and a
// 10 second browse timeout.
func New(browser Browser, starter FlowStarter, cfg Config, watches ...Watch) *Discovery {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Discovery{
		browser: browser,
		starter: starter,
		watches: watches,
		cfg:     cfg,
		logger:  noopLogger{},
	}
}

// NewResolver returns the system mDNS resolver.
func NewResolver() (*zeroconf.Resolver, error) {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("creating mdns resolver: %w", err)
	}
	return r, nil
}

// SetLogger sets the logger.
func (d *Discovery) SetLogger(logger Logger) {
	d.logger = logger
}

// Run scans immediately and then on every interval until ctx is cancelled.
func (d *Discovery) Run(ctx context.Context) error {
	if len(d.watches) == 0 {
		return ErrNoWatches
	}

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := d.Scan(ctx); err != nil && ctx.Err() == nil {
			d.logger.Warn("discovery scan failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Scan browses every watched service type once and starts a zeroconf flow
// per discovered instance. It returns the number of flows started.
func (d *Discovery) Scan(ctx context.Context) (int, error) {
	d.scanMu.Lock()
	defer d.scanMu.Unlock()

	started := 0
	var errs []error
	for _, w := range d.watches {
		n, err := d.scanOne(ctx, w)
		started += n
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", w.Service, err))
		}
	}
	return started, errors.Join(errs...)
}

func (d *Discovery) scanOne(ctx context.Context, w Watch) (int, error) {
	browseCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := d.browser.Browse(browseCtx, w.Service, browseDomain, entries); err != nil {
		return 0, fmt.Errorf("browsing: %w", err)
	}

	seen := make(map[string]bool)
	started := 0
	for {
		select {
		case <-browseCtx.Done():
			return started, nil
		case e, ok := <-entries:
			if !ok {
				return started, nil
			}
			if e == nil || seen[e.Instance] {
				continue
			}
			seen[e.Instance] = true
			if d.offer(ctx, w, e) {
				started++
			}
		}
	}
}

// offer starts a zeroconf flow for e and reports whether it was started.
func (d *Discovery) offer(ctx context.Context, w Watch, e *zeroconf.ServiceEntry) bool {
	info, ok := Info(e)
	if !ok {
		d.logger.Debug("discovered service has no address", "service", w.Service, "instance", e.Instance)
		return false
	}

	res, err := d.starter.Start(ctx, w.Domain, flow.SourceZeroconf, info.Map())
	if err != nil {
		d.logger.Warn("starting discovery flow failed", "domain", w.Domain, "host", info.Host, "error", err)
		return false
	}

	if res.Type == flow.ResultAbort {
		d.logger.Debug("discovered device not offered", "domain", w.Domain, "host", info.Host, "reason", res.Reason)
	} else {
		d.logger.Info("discovered device", "domain", w.Domain, "host", info.Host, "flow_id", res.FlowID)
	}
	return true
}

// Info converts a browse result. IPv4 addresses are preferred. It reports
// false when the entry carries no usable address.
func Info(e *zeroconf.ServiceEntry) (flow.DiscoveryInfo, bool) {
	hostname := strings.TrimSuffix(e.HostName, ".")

	var host string
	switch {
	case len(e.AddrIPv4) > 0:
		host = e.AddrIPv4[0].String()
	case len(e.AddrIPv6) > 0:
		host = e.AddrIPv6[0].String()
	default:
		host = hostname
	}
	if host == "" || e.Port <= 0 {
		return flow.DiscoveryInfo{}, false
	}

	return flow.DiscoveryInfo{
		Host:       host,
		Port:       strconv.Itoa(e.Port),
		Hostname:   e.HostName,
		Type:       e.Service + "." + e.Domain,
		Name:       e.Instance,
		Properties: properties(e.Text),
	}, true
}

// properties parses TXT records of the form key=value. A bare key maps to
// an empty value.
func properties(txt []string) map[string]string {
	props := make(map[string]string, len(txt))
	for _, kv := range txt {
		key, value, _ := strings.Cut(kv, "=")
		if key == "" {
			continue
		}
		props[strings.ToLower(key)] = value
	}
	return props
}
