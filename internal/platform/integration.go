package platform

import (
	"context"
	"net/http"

	"github.com/nerrad567/gray-logic-integrations/internal/entity"
	"github.com/nerrad567/gray-logic-integrations/internal/entry"
	"github.com/nerrad567/gray-logic-integrations/internal/flow"
)

// Logger defines the logging interface used by the platform.
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

// Integration adapts one vendor to the platform.
type Integration interface {
	// Domain is the integration name, e.g. "system_bridge".
	Domain() string

	// NewFlow returns the config flow handler for a new flow.
	NewFlow(f *flow.Flow) flow.Handler

	// Setup starts the entry: builds the vendor client, performs the first
	// coordinator refresh and returns the entities. A transient failure
	// must wrap coordinator.ErrNotReady.
	Setup(ctx context.Context, pc *Context) (*Runtime, error)
}

// Context is everything an integration may use while an entry runs. It
// is built per entry; integrations keep no global state.
type Context struct {
	Entry      *entry.Entry
	Store      *entry.Store
	HTTPClient *http.Client
	Logger     Logger

	// ExternalURL is the base URL the platform is reachable on, used for
	// OAuth redirects.
	ExternalURL string
}

// UpdateData persists data changes for the running entry without
// reloading it. Used for token refresh.
func (pc *Context) UpdateData(ctx context.Context, updates map[string]string) error {
	_, err := pc.Store.UpdateData(ctx, pc.Entry.ID, updates, false)
	return err
}

// Coordinated is the part of a coordinator the Host drives.
type Coordinated interface {
	Name() string
	AddListener(fn func()) (remove func())
	Shutdown()
}

// Runtime is a running entry.
type Runtime struct {
	Entities     []*entity.Entity
	Coordinators []Coordinated

	// Close releases vendor resources. Optional.
	Close func()
}
