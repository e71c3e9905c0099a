package ovoenergy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-integrations/internal/coordinator"
	"github.com/nerrad567/gray-logic-integrations/internal/flow"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-integrations/internal/platform"
)

// Domain is the integration name.
const Domain = "ovoenergy"

// Integration is the OVO Energy adapter.
type Integration struct {
	cfg        config.OVOEnergyConfig
	httpClient *http.Client
	now        func() time.Time
}

// New creates the integration.
func New(cfg config.OVOEnergyConfig, httpClient *http.Client) *Integration {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Integration{cfg: cfg, httpClient: httpClient, now: time.Now}
}

// Domain implements platform.Integration.
func (i *Integration) Domain() string { return Domain }

// NewFlow implements platform.Integration.
func (i *Integration) NewFlow(f *flow.Flow) flow.Handler {
	return &flowHandler{f: f, account: i.lookupAccount}
}

// Setup implements platform.Integration.
func (i *Integration) Setup(ctx context.Context, pc *platform.Context) (*platform.Runtime, error) {
	data := pc.Entry.Data

	httpClient := pc.HTTPClient
	if httpClient == nil {
		httpClient = i.httpClient
	}
	client := NewClient(httpClient, i.cfg.AuthURL, i.cfg.UsageURL, data[ConfUsername], data[ConfPassword])

	account := data[ConfAccountID]
	if account == "" {
		account = pc.Entry.UniqueID
	}

	c := coordinator.New(coordinator.Options[*Snapshot]{
		Name:     Domain + "_coordinator",
		Interval: i.cfg.PollInterval,
		Timeout:  i.cfg.PollTimeout,
		Update: func(ctx context.Context) (*Snapshot, error) {
			return i.fetch(ctx, client, account)
		},
		Logger: pc.Logger,
	})
	if err := c.FirstRefresh(ctx); err != nil {
		c.Shutdown()
		if errors.Is(err, ErrAuthentication) {
			return nil, fmt.Errorf("ovoenergy: entry %s: %w", pc.Entry.ID, ErrAuthentication)
		}
		return nil, err
	}

	name := data[ConfName]
	if name == "" {
		name = pc.Entry.Title
	}
	return &platform.Runtime{
		Entities:     buildEntities(c, account, name),
		Coordinators: []platform.Coordinated{c},
	}, nil
}

// fetch reads the daily usage of the month containing yesterday and the
// half-hourly usage of today, falling back to yesterday before the meter
// has reported.
func (i *Integration) fetch(ctx context.Context, client *Client, account string) (*Snapshot, error) {
	now := i.now()
	yesterday := now.AddDate(0, 0, -1)

	daily, err := client.DailyUsage(ctx, account, yesterday)
	if err != nil {
		return nil, err
	}

	halfHourly, err := client.HalfHourlyUsage(ctx, account, now)
	if err != nil {
		return nil, err
	}
	if _, ok := halfHourly.Electricity.Last(); !ok {
		halfHourly, err = client.HalfHourlyUsage(ctx, account, yesterday)
		if err != nil {
			return nil, err
		}
	}

	return &Snapshot{Daily: daily, HalfHourly: halfHourly, Fetched: now}, nil
}
