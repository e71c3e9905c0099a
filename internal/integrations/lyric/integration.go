package lyric

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/nerrad567/gray-logic-integrations/internal/coordinator"
	"github.com/nerrad567/gray-logic-integrations/internal/flow"
	"github.com/nerrad567/gray-logic-integrations/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-integrations/internal/platform"
)

// Domain is the integration name.
const Domain = "lyric"

// Integration is the Honeywell Lyric adapter.
type Integration struct {
	cfg         config.LyricConfig
	externalURL string
	httpClient  *http.Client
}

// New creates the integration. externalURL is the base the OAuth callback
// is reachable on.
func New(cfg config.LyricConfig, externalURL string, httpClient *http.Client) *Integration {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Integration{cfg: cfg, externalURL: externalURL, httpClient: httpClient}
}

// Domain implements platform.Integration.
func (i *Integration) Domain() string { return Domain }

// NewFlow implements platform.Integration.
func (i *Integration) NewFlow(f *flow.Flow) flow.Handler {
	return &flowHandler{f: f, in: i}
}

// Setup implements platform.Integration.
func (i *Integration) Setup(ctx context.Context, pc *platform.Context) (*platform.Runtime, error) {
	data := pc.Entry.Data
	token, err := decodeToken(data[ConfToken])
	if err != nil {
		return nil, fmt.Errorf("lyric: entry %s: %w", pc.Entry.ID, err)
	}

	httpClient := pc.HTTPClient
	if httpClient == nil {
		httpClient = i.httpClient
	}
	externalURL := pc.ExternalURL
	if externalURL == "" {
		externalURL = i.externalURL
	}

	// Token refreshes outlive the setup call, so they run on their own
	// context rather than ctx.
	base := withHTTPClient(context.Background(), httpClient)
	conf := oauthConfig(i.cfg, data[ConfClientID], data[ConfClientSecret], externalURL)
	ts := newSavingTokenSource(conf.TokenSource(base, token), token, func(t *oauth2.Token) {
		encoded, err := encodeToken(t)
		if err == nil {
			err = pc.UpdateData(context.Background(), map[string]string{ConfToken: encoded})
		}
		if err != nil && pc.Logger != nil {
			pc.Logger.Warn("persisting refreshed lyric token failed", "entry_id", pc.Entry.ID, "error", err)
		}
	})
	client := NewClient(oauth2.NewClient(base, ts), i.cfg.APIURL, data[ConfClientID])

	c := coordinator.New(coordinator.Options[*Snapshot]{
		Name:     Domain + "_coordinator",
		Interval: i.cfg.PollInterval,
		Timeout:  i.cfg.PollTimeout,
		Update:   client.Snapshot,
		Logger:   pc.Logger,
	})
	if err := c.FirstRefresh(ctx); err != nil {
		c.Shutdown()
		if errors.Is(err, ErrAuthentication) {
			return nil, fmt.Errorf("lyric: entry %s: %w", pc.Entry.ID, ErrAuthentication)
		}
		return nil, err
	}

	return &platform.Runtime{
		Entities:     buildEntities(c, client),
		Coordinators: []platform.Coordinated{c},
	}, nil
}
