package flow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-integrations/internal/entry"
)

// Logger defines the logging interface used by the Manager.
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

// Default timeouts.
const (
	DefaultExternalStepTimeout = 10 * time.Minute
	DefaultIdleTimeout         = time.Hour
	DefaultReapInterval        = time.Minute
)

// Config holds Manager timeouts. Zero values take the defaults.
type Config struct {
	// ExternalStepTimeout bounds how long a flow waits for its callback.
	ExternalStepTimeout time.Duration

	// IdleTimeout removes flows nobody has touched for this long.
	IdleTimeout time.Duration

	// ReapInterval is how often Run looks for expired flows.
	ReapInterval time.Duration
}

// Manager runs config flows for every registered integration.
type Manager struct {
	store  *entry.Store
	signer *StateSigner
	cfg    Config
	logger Logger
	now    func() time.Time

	mu        sync.Mutex
	factories map[string]Factory
	flows     map[string]*Flow
}

// NewManager creates a manager persisting entries to store and signing
// external state with signer.
func NewManager(store *entry.Store, signer *StateSigner, cfg Config) *Manager {
	if cfg.ExternalStepTimeout <= 0 {
		cfg.ExternalStepTimeout = DefaultExternalStepTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = DefaultReapInterval
	}

	return &Manager{
		store:     store,
		signer:    signer,
		cfg:       cfg,
		logger:    noopLogger{},
		now:       time.Now,
		factories: make(map[string]Factory),
		flows:     make(map[string]*Flow),
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Register makes domain available for new flows.
func (m *Manager) Register(domain string, factory Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[domain] = factory
}

// Domains returns the registered domains, sorted.
func (m *Manager) Domains() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	domains := make([]string, 0, len(m.factories))
	for d := range m.factories {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

// Start creates a flow for domain and runs its first step, named after
// source. data is passed as the first step's input; nil shows the form.
func (m *Manager) Start(ctx context.Context, domain string, source Source, data map[string]string) (Result, error) {
	m.mu.Lock()
	factory, ok := m.factories[domain]
	if !ok {
		m.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownHandler, domain)
	}

	f := &Flow{
		ID:         uuid.NewString(),
		Domain:     domain,
		Source:     source,
		Context:    data,
		mgr:        m,
		lastActive: m.now(),
		schemas:    make(map[string]Schema),
	}
	m.flows[f.ID] = f
	m.mu.Unlock()

	f.handler = factory(f)

	m.logger.Debug("flow started", "flow_id", f.ID, "domain", domain, "source", source)

	f.stepMu.Lock()
	defer f.stepMu.Unlock()

	var input Input
	if data != nil {
		input = Input(data)
	}
	res, err := f.handler.Step(ctx, string(source), input)
	if errors.Is(err, ErrUnknownStep) {
		m.mu.Lock()
		delete(m.flows, f.ID)
		m.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s has no %s step", ErrUnsupportedSource, domain, source)
	}
	return m.finishStep(ctx, f, string(source), res, err), nil
}

// Configure submits input to the flow's current step.
func (m *Manager) Configure(ctx context.Context, flowID string, input Input) (Result, error) {
	f, err := m.lookup(flowID)
	if err != nil {
		return Result{}, err
	}

	f.stepMu.Lock()
	defer f.stepMu.Unlock()

	m.mu.Lock()
	if _, ok := m.flows[flowID]; !ok {
		m.mu.Unlock()
		return Result{}, ErrFlowNotFound
	}
	if f.external {
		m.mu.Unlock()
		return Result{}, ErrExternalPending
	}
	step := f.nextStep
	schema, hasSchema := f.schemas[step]
	last := f.last
	m.mu.Unlock()

	if hasSchema && last.Type == ResultForm {
		applied, errs := schema.Apply(input)
		if errs != nil {
			res := last
			res.Errors = errs
			m.record(f, res)
			return res, nil
		}
		input = applied
	}

	return m.runStep(ctx, f, step, input), nil
}

// ResumeExternal continues a flow suspended on an external step. state is
// the token embedded in the external URL and code the value the vendor
// returned.
func (m *Manager) ResumeExternal(ctx context.Context, state, code string) (Result, error) {
	claims, err := m.signer.Verify(state)
	if err != nil {
		return Result{}, err
	}

	f, err := m.lookup(claims.FlowID)
	if err != nil {
		return Result{}, err
	}

	f.stepMu.Lock()
	defer f.stepMu.Unlock()

	m.mu.Lock()
	if _, ok := m.flows[f.ID]; !ok {
		m.mu.Unlock()
		return Result{}, ErrFlowExpired
	}
	if !f.external {
		m.mu.Unlock()
		return Result{}, ErrNotExternal
	}
	if m.now().After(f.deadline) {
		delete(m.flows, f.ID)
		m.mu.Unlock()
		m.logger.Info("external step expired", "flow_id", f.ID, "domain", f.Domain)
		return Result{}, ErrFlowExpired
	}
	f.external = false
	step := f.nextStep
	m.mu.Unlock()

	m.logger.Debug("external step resumed", "flow_id", f.ID, "domain", f.Domain)
	return m.runStep(ctx, f, step, Input{"code": code}), nil
}

// Get returns the last result of an in-progress flow.
func (m *Manager) Get(flowID string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.flows[flowID]
	if !ok {
		return Result{}, ErrFlowNotFound
	}
	return f.last, nil
}

// List returns the last result of every in-progress flow, ordered by
// flow id.
func (m *Manager) List() []Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]Result, 0, len(m.flows))
	for _, f := range m.flows {
		results = append(results, f.last)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].FlowID < results[j].FlowID })
	return results
}

// Abort removes an in-progress flow.
func (m *Manager) Abort(flowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.flows[flowID]; !ok {
		return ErrFlowNotFound
	}
	delete(m.flows, flowID)
	return nil
}

// Run removes expired flows until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Reap()
		}
	}
}

// Reap removes flows whose external deadline passed or that have been
// idle longer than the idle timeout. It returns the number removed.
func (m *Manager) Reap() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, f := range m.flows {
		switch {
		case f.external && now.After(f.deadline):
			m.logger.Info("flow expired waiting for external step",
				"flow_id", id, "domain", f.Domain, "reason", ReasonExternalTimeout)
		case now.Sub(f.lastActive) > m.cfg.IdleTimeout:
			m.logger.Debug("idle flow removed", "flow_id", id, "domain", f.Domain)
		default:
			continue
		}
		delete(m.flows, id)
		removed++
	}
	return removed
}

func (m *Manager) lookup(flowID string) (*Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.flows[flowID]
	if !ok {
		return nil, ErrFlowNotFound
	}
	return f, nil
}

// runStep runs one handler step and applies its result. Caller holds
// f.stepMu.
func (m *Manager) runStep(ctx context.Context, f *Flow, step string, input Input) Result {
	res, err := f.handler.Step(ctx, step, input)
	return m.finishStep(ctx, f, step, res, err)
}

// finishStep turns a handler outcome into the recorded result.
func (m *Manager) finishStep(ctx context.Context, f *Flow, step string, res Result, err error) Result {
	var abort *AbortError
	switch {
	case errors.As(err, &abort):
		res = f.Abort(abort.Reason)
	case err != nil:
		m.logger.Error("unexpected flow error", "flow_id", f.ID, "domain", f.Domain, "step", step, "error", err)
		res = m.unknownErrorResult(f, step)
	}

	if res.Type == ResultCreateEntry {
		res = m.createEntry(ctx, f, res)
	}

	m.record(f, res)
	return res
}

func (m *Manager) unknownErrorResult(f *Flow, step string) Result {
	m.mu.Lock()
	schema, ok := f.schemas[step]
	m.mu.Unlock()

	if !ok {
		return f.Abort(ReasonUnknown)
	}
	return f.ShowForm(step, schema, map[string]string{ErrorBaseKey: ErrorUnknown}, nil)
}

func (m *Manager) createEntry(ctx context.Context, f *Flow, res Result) Result {
	e, created, err := m.store.Upsert(ctx, &entry.Entry{
		Domain:   f.Domain,
		Title:    res.Title,
		UniqueID: f.UniqueID(),
		Source:   string(f.Source),
		Data:     res.Data,
	})
	if err != nil {
		m.logger.Error("persisting config entry failed", "flow_id", f.ID, "domain", f.Domain, "error", err)
		return f.Abort(ReasonUnknown)
	}
	if !created {
		m.logger.Info("flow updated existing entry", "flow_id", f.ID, "entry_id", e.ID)
	}
	res.Entry = e
	return res
}

// record stores the result as the flow's current state and removes
// finished flows.
func (m *Manager) record(f *Flow, res Result) {
	res.FlowID = f.ID
	res.Handler = f.Domain

	m.mu.Lock()
	defer m.mu.Unlock()

	f.last = res
	f.lastActive = m.now()

	switch res.Type {
	case ResultForm:
		f.nextStep = res.StepID
		if res.Schema != nil {
			f.schemas[res.StepID] = res.Schema
		}
	case ResultExternal:
		f.nextStep = res.StepID
		f.external = true
		f.deadline = m.now().Add(m.cfg.ExternalStepTimeout)
	case ResultExternalDone:
		f.nextStep = res.StepID
	case ResultCreateEntry, ResultAbort:
		delete(m.flows, f.ID)
		m.logger.Info("flow finished", "flow_id", f.ID, "domain", f.Domain,
			"result", res.Type, "reason", res.Reason)
	}
}
