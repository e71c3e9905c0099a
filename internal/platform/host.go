package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-integrations/internal/coordinator"
	"github.com/nerrad567/gray-logic-integrations/internal/entity"
	"github.com/nerrad567/gray-logic-integrations/internal/entry"
)

// Setup retry backoff.
const (
	DefaultRetryBase = 5 * time.Second
	DefaultRetryMax  = 5 * time.Minute
)

// HostConfig configures a Host.
type HostConfig struct {
	Store    *entry.Store
	Registry *entity.Registry

	// HTTPClient is shared by all integrations. Defaults to a client with
	// a 30 second timeout.
	HTTPClient *http.Client

	ExternalURL string

	// RetryBase and RetryMax bound the setup retry backoff.
	RetryBase time.Duration
	RetryMax  time.Duration
}

// loadedEntry is a running entry.
type loadedEntry struct {
	runtime *Runtime
	removes []func()
}

// Host runs integrations for the config entries in the store.
//
// Thread Safety: All methods are safe for concurrent use.
type Host struct {
	store       *entry.Store
	registry    *entity.Registry
	httpClient  *http.Client
	externalURL string
	retryBase   time.Duration
	retryMax    time.Duration
	logger      Logger

	mu           sync.Mutex
	ctx          context.Context
	integrations map[string]Integration
	loaded       map[string]*loadedEntry
	retries      map[string]*time.Timer
	attempts     map[string]int
	unsubscribe  func()

	// entryLocks serialise setup and unload per entry.
	entryLocks map[string]*sync.Mutex

	// startup tracks the background SetupAll started by Start.
	startup sync.WaitGroup

	pubMu      sync.Mutex
	publishers []Publisher
	published  map[string]string // entity id -> fingerprint of last published state
}

// NewHost creates a host. Call Register for each integration, then Start.
func NewHost(cfg HostConfig) *Host {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second} //nolint:mnd // generous upper bound, integrations set their own
	}
	retryBase := cfg.RetryBase
	if retryBase <= 0 {
		retryBase = DefaultRetryBase
	}
	retryMax := cfg.RetryMax
	if retryMax <= 0 {
		retryMax = DefaultRetryMax
	}

	return &Host{
		store:        cfg.Store,
		registry:     cfg.Registry,
		httpClient:   httpClient,
		externalURL:  cfg.ExternalURL,
		retryBase:    retryBase,
		retryMax:     retryMax,
		logger:       noopLogger{},
		ctx:          context.Background(),
		integrations: make(map[string]Integration),
		loaded:       make(map[string]*loadedEntry),
		retries:      make(map[string]*time.Timer),
		attempts:     make(map[string]int),
		entryLocks:   make(map[string]*sync.Mutex),
		published:    make(map[string]string),
	}
}

// SetLogger sets the logger for the host.
func (h *Host) SetLogger(logger Logger) {
	h.logger = logger
}

// Register adds an integration.
func (h *Host) Register(i Integration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.integrations[i.Domain()] = i
}

// Integrations returns the registered integrations sorted by domain.
func (h *Host) Integrations() []Integration {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Integration, 0, len(h.integrations))
	for _, i := range h.integrations {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Domain() < out[b].Domain() })
	return out
}

// AddPublisher registers a state publisher.
func (h *Host) AddPublisher(p Publisher) {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()
	h.publishers = append(h.publishers, p)
}

// Start subscribes to entry changes and sets up every stored entry in the
// background, so an unreachable vendor does not hold up the caller.
// ctx bounds setup and background retries.
func (h *Host) Start(ctx context.Context) {
	h.mu.Lock()
	h.ctx = ctx
	h.unsubscribe = h.store.Subscribe(h.handleChange)
	h.mu.Unlock()

	h.startup.Add(1)
	go func() {
		defer h.startup.Done()
		h.SetupAll(ctx)
	}()
}

// SetupAll sets up every stored entry that is not running yet, all
// entries concurrently. It returns when every setup attempt has finished.
func (h *Host) SetupAll(ctx context.Context) {
	var g errgroup.Group
	for _, e := range h.store.List() {
		e := e // per-iteration copy (go directive is 1.21)
		g.Go(func() error {
			if err := h.SetupEntry(ctx, e.ID); err != nil {
				h.logger.Warn("entry setup failed", "entry_id", e.ID, "domain", e.Domain, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // Failures are logged per entry
}

// lockEntry takes the setup lock of one entry and returns its release.
func (h *Host) lockEntry(entryID string) func() {
	h.mu.Lock()
	l, ok := h.entryLocks[entryID]
	if !ok {
		l = &sync.Mutex{}
		h.entryLocks[entryID] = l
	}
	h.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (h *Host) handleChange(c entry.Change) {
	ctx := h.context()

	var err error
	switch {
	case c.Type == entry.ChangeAdded:
		err = h.SetupEntry(ctx, c.Entry.ID)
	case c.Type == entry.ChangeRemoved:
		err = h.UnloadEntry(ctx, c.Entry.ID)
	case c.Type == entry.ChangeUpdated && c.Reload:
		err = h.ReloadEntry(ctx, c.Entry.ID)
	default:
		return
	}
	if err != nil && !errors.Is(err, ErrNotLoaded) {
		h.logger.Warn("entry change handling failed",
			"entry_id", c.Entry.ID, "change", c.Type, "error", err)
	}
}

func (h *Host) context() context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ctx
}

// SetupEntry starts an entry. A transient failure puts the entry in
// setup_retry and schedules another attempt; other failures leave it in
// setup_error.
func (h *Host) SetupEntry(ctx context.Context, entryID string) error {
	defer h.lockEntry(entryID)()

	e, err := h.store.Get(entryID)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if _, running := h.loaded[entryID]; running {
		h.mu.Unlock()
		return nil
	}
	h.cancelRetryLocked(entryID)
	integration, ok := h.integrations[e.Domain]
	h.mu.Unlock()

	if !ok {
		h.setState(ctx, entryID, entry.StateSetupError)
		return fmt.Errorf("%w: %s", ErrUnknownIntegration, e.Domain)
	}

	pc := &Context{
		Entry:       e,
		Store:       h.store,
		HTTPClient:  h.httpClient,
		Logger:      h.logger,
		ExternalURL: h.externalURL,
	}

	rt, err := integration.Setup(ctx, pc)
	if err != nil {
		if errors.Is(err, coordinator.ErrNotReady) {
			h.setState(ctx, entryID, entry.StateSetupRetry)
			delay := h.scheduleRetry(entryID)
			h.logger.Warn("entry not ready, retrying",
				"entry_id", entryID, "domain", e.Domain, "retry_in", delay, "error", err)
			return err
		}
		h.setState(ctx, entryID, entry.StateSetupError)
		return fmt.Errorf("setting up %s entry %s: %w", e.Domain, entryID, err)
	}

	if err := h.registry.Add(entryID, rt.Entities); err != nil {
		shutdownRuntime(rt)
		h.setState(ctx, entryID, entry.StateSetupError)
		return fmt.Errorf("registering entities of %s: %w", entryID, err)
	}

	loaded := &loadedEntry{runtime: rt}
	for _, c := range rt.Coordinators {
		loaded.removes = append(loaded.removes, c.AddListener(func() { h.publishEntry(entryID) }))
	}

	h.mu.Lock()
	h.loaded[entryID] = loaded
	delete(h.attempts, entryID)
	h.mu.Unlock()

	h.setState(ctx, entryID, entry.StateLoaded)
	h.logger.Info("entry loaded", "entry_id", entryID, "domain", e.Domain, "entities", len(rt.Entities))

	h.publishEntry(entryID)
	return nil
}

// UnloadEntry stops a running entry and withdraws its entities.
func (h *Host) UnloadEntry(ctx context.Context, entryID string) error {
	defer h.lockEntry(entryID)()

	return h.unloadLocked(ctx, entryID)
}

func (h *Host) unloadLocked(ctx context.Context, entryID string) error {
	h.mu.Lock()
	h.cancelRetryLocked(entryID)
	delete(h.attempts, entryID)
	loaded, ok := h.loaded[entryID]
	delete(h.loaded, entryID)
	h.mu.Unlock()

	if !ok {
		return ErrNotLoaded
	}

	for _, remove := range loaded.removes {
		remove()
	}
	shutdownRuntime(loaded.runtime)

	ids := h.registry.RemoveEntry(entryID)
	h.withdraw(ctx, ids)

	h.setState(ctx, entryID, entry.StateNotLoaded)
	h.logger.Info("entry unloaded", "entry_id", entryID)
	return nil
}

// ReloadEntry unloads an entry if it runs and sets it up again.
func (h *Host) ReloadEntry(ctx context.Context, entryID string) error {
	unlock := h.lockEntry(entryID)
	err := h.unloadLocked(ctx, entryID)
	unlock()

	if err != nil && !errors.Is(err, ErrNotLoaded) {
		return err
	}
	return h.SetupEntry(ctx, entryID)
}

// IsLoaded reports whether an entry is running.
func (h *Host) IsLoaded(entryID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.loaded[entryID]
	return ok
}

// CallService runs a service on an entity, e.g. set_temperature.
func (h *Host) CallService(ctx context.Context, entityID, service string, params map[string]any) error {
	e, err := h.registry.Get(entityID)
	if err != nil {
		return err
	}
	h.logger.Info("calling service", "entity_id", entityID, "service", service)
	return e.CallService(ctx, service, params)
}

// Shutdown unloads every entry and stops following the store. It waits for
// the startup setup to finish; cancel the Start context first to cut it short.
func (h *Host) Shutdown(ctx context.Context) {
	h.startup.Wait()

	h.mu.Lock()
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
	for id := range h.retries {
		h.cancelRetryLocked(id)
	}
	ids := make([]string, 0, len(h.loaded))
	for id := range h.loaded {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		if err := h.UnloadEntry(ctx, id); err != nil && !errors.Is(err, ErrNotLoaded) {
			h.logger.Warn("unloading entry failed", "entry_id", id, "error", err)
		}
	}
}

// RetryDelay returns the backoff before setup attempt n+1 (n >= 1).
func (h *Host) RetryDelay(n int) time.Duration {
	d := h.retryBase
	for i := 1; i < n; i++ {
		d *= 2
		if d >= h.retryMax {
			return h.retryMax
		}
	}
	return d
}

func (h *Host) scheduleRetry(entryID string) time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.attempts[entryID]++
	delay := h.RetryDelay(h.attempts[entryID])
	ctx := h.ctx

	h.retries[entryID] = time.AfterFunc(delay, func() {
		if ctx.Err() != nil {
			return
		}
		if err := h.SetupEntry(ctx, entryID); err != nil && !errors.Is(err, coordinator.ErrNotReady) {
			h.logger.Warn("entry setup retry failed", "entry_id", entryID, "error", err)
		}
	})
	return delay
}

func (h *Host) cancelRetryLocked(entryID string) {
	if t, ok := h.retries[entryID]; ok {
		t.Stop()
		delete(h.retries, entryID)
	}
}

func (h *Host) setState(ctx context.Context, entryID string, state entry.State) {
	if err := h.store.SetState(ctx, entryID, state); err != nil && !errors.Is(err, entry.ErrNotFound) {
		h.logger.Warn("recording entry state failed", "entry_id", entryID, "state", state, "error", err)
	}
}

func shutdownRuntime(rt *Runtime) {
	for _, c := range rt.Coordinators {
		c.Shutdown()
	}
	if rt.Close != nil {
		rt.Close()
	}
}
