package systembridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-integrations/internal/coordinator"
	"github.com/nerrad567/gray-logic-integrations/internal/flow"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-integrations/internal/platform"
)

// Domain is the integration name.
const Domain = "system_bridge"

// ZeroconfType is the service type bridges announce.
const ZeroconfType = "_system-bridge._udp"

// Integration is the System Bridge adapter.
type Integration struct {
	cfg        config.SystemBridgeConfig
	httpClient *http.Client
}

// New creates the integration. httpClient is used by config flows; a
// running entry uses the client from its platform.Context.
func New(cfg config.SystemBridgeConfig, httpClient *http.Client) *Integration {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Integration{cfg: cfg, httpClient: httpClient}
}

// Domain implements platform.Integration.
func (i *Integration) Domain() string { return Domain }

// NewFlow implements platform.Integration.
func (i *Integration) NewFlow(f *flow.Flow) flow.Handler {
	return &flowHandler{
		f:           f,
		check:       validate(i.httpClient),
		defaultPort: strconv.Itoa(i.cfg.DefaultPort),
	}
}

// Setup implements platform.Integration.
func (i *Integration) Setup(ctx context.Context, pc *platform.Context) (*platform.Runtime, error) {
	data := pc.Entry.Data
	port := data[ConfPort]
	if port == "" {
		port = strconv.Itoa(i.cfg.DefaultPort)
	}

	httpClient := pc.HTTPClient
	if httpClient == nil {
		httpClient = i.httpClient
	}
	client, err := NewClient(httpClient, data[ConfHost], port, data[ConfAPIKey])
	if err != nil {
		return nil, fmt.Errorf("system_bridge: entry %s: %w", pc.Entry.ID, err)
	}

	c := coordinator.New(coordinator.Options[*Snapshot]{
		Name:     Domain + "_coordinator",
		Interval: i.cfg.PollInterval,
		Timeout:  i.cfg.PollTimeout,
		Update:   client.Snapshot,
		Logger:   pc.Logger,
	})
	if err := c.FirstRefresh(ctx); err != nil {
		c.Shutdown()
		// A rejected key will not fix itself; everything else is retried.
		if errors.Is(err, ErrAuthentication) {
			return nil, fmt.Errorf("system_bridge: entry %s: %w", pc.Entry.ID, ErrAuthentication)
		}
		return nil, err
	}

	prefix := pc.Entry.UniqueID
	if prefix == "" {
		prefix = pc.Entry.ID
	}

	return &platform.Runtime{
		Entities:     buildEntities(c, client, prefix),
		Coordinators: []platform.Coordinated{c},
	}, nil
}
